package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/enum"
	"github.com/kopjum-pos/api/internal/middleware"
	"github.com/kopjum-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// ItemStore defines the database methods needed by item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ItemStore interface {
	ListItems(ctx context.Context, arg database.ListItemsParams) ([]database.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (database.Item, error)
	CreateItem(ctx context.Context, arg database.CreateItemParams) (database.Item, error)
	DeactivateItem(ctx context.Context, arg database.DeactivateItemParams) (uuid.UUID, error)
}

// ItemCatalogServicer defines the service methods needed by item handlers.
// Satisfied by *service.CatalogService; narrow interface for testability.
type ItemCatalogServicer interface {
	UpdateItem(ctx context.Context, actor service.Actor, id uuid.UUID, req service.UpdateItemRequest) (database.Item, error)
}

// ItemHandler handles menu item endpoints.
type ItemHandler struct {
	store ItemStore
	svc   ItemCatalogServicer
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(store ItemStore, svc ItemCatalogServicer) *ItemHandler {
	return &ItemHandler{store: store, svc: svc}
}

// RegisterRoutes registers the item endpoints open to any authenticated
// user.
func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the item mutations; the router mounts
// these behind the admin role.
func (h *ItemHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type itemRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Price    string `json:"price"`
}

type itemResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	Price     string    `json:"price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

func toItemResponse(it database.Item) itemResponse {
	return itemResponse{
		ID:        it.ID,
		Name:      it.Name,
		Type:      it.Type,
		Category:  it.Category,
		Price:     numericToString(it.Price),
		IsActive:  it.IsActive,
		CreatedAt: it.CreatedAt,
		CreatedBy: it.CreatedBy,
		UpdatedAt: it.UpdatedAt,
		UpdatedBy: it.UpdatedBy,
	}
}

// --- Handlers ---

// List returns items, optionally filtered by name substring and active flag.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListItemsParams{
		Name: r.URL.Query().Get("name"),
	}
	switch r.URL.Query().Get("is_active") {
	case "true":
		params.IsActive = pgtype.Bool{Bool: true, Valid: true}
	case "false":
		params.IsActive = pgtype.Bool{Bool: false, Valid: true}
	}

	items, err := h.store.ListItems(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]itemResponse, len(items))
	for i, it := range items {
		resp[i] = toItemResponse(it)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single item by ID.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := h.store.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		log.Printf("ERROR: get item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Create adds a new menu item.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if msg := validateItemRequest(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	price, err := parseItemPrice(req.Price)
	if err != nil {
		if errors.Is(err, errNegativePrice) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		} else {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		}
		return
	}

	item, err := h.store.CreateItem(r.Context(), database.CreateItemParams{
		Name:      req.Name,
		Type:      req.Type,
		Category:  req.Category,
		Price:     price,
		CreatedBy: claims.Username,
	})
	if err != nil {
		log.Printf("ERROR: create item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

// Update edits an item. A price change forks a fresh item row and
// deactivates this one; the response carries whichever row is current.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if msg := validateItemRequest(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	item, err := h.svc.UpdateItem(r.Context(), actorFromClaims(claims), id, service.UpdateItemRequest{
		Name:     req.Name,
		Type:     req.Type,
		Category: req.Category,
		Price:    req.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidPrice), errors.Is(err, service.ErrMalformedPrice):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// Delete soft-deletes an item by setting is_active=false.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	_, err = h.store.DeactivateItem(r.Context(), database.DeactivateItemParams{
		ID:        id,
		UpdatedBy: claims.Username,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		log.Printf("ERROR: delete item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

var foodCategories = map[string]bool{
	enum.ItemCategoryMainCourse: true,
	enum.ItemCategorySnack:      true,
	enum.ItemCategoryDessert:    true,
}

var drinkCategories = map[string]bool{
	enum.ItemCategoryCoffee:    true,
	enum.ItemCategoryTea:       true,
	enum.ItemCategoryJuice:     true,
	enum.ItemCategorySoftDrink: true,
}

// validateItemRequest returns an error message, or "" when the request is valid.
// Price format is checked separately so create and update can map it to
// their own error shapes.
func validateItemRequest(req itemRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Price == "" {
		return "price is required"
	}
	switch req.Type {
	case enum.ItemTypeFood:
		if !foodCategories[req.Category] {
			return "invalid category for FOOD"
		}
	case enum.ItemTypeDrink:
		if !drinkCategories[req.Category] {
			return "invalid category for DRINK"
		}
	default:
		return "invalid type"
	}
	return ""
}

var errNegativePrice = errors.New("negative price")

func parseItemPrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}
