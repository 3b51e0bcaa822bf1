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
	"github.com/kopjum-pos/api/internal/middleware"
	"github.com/kopjum-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

// VoucherStore defines the database methods needed by voucher handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type VoucherStore interface {
	ListVouchers(ctx context.Context, arg database.ListVouchersParams) ([]database.Voucher, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	CreateVoucher(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error)
	DeactivateVoucher(ctx context.Context, arg database.DeactivateVoucherParams) (uuid.UUID, error)
}

// VoucherCatalogServicer defines the service methods needed by voucher handlers.
type VoucherCatalogServicer interface {
	UpdateVoucher(ctx context.Context, actor service.Actor, id uuid.UUID, req service.UpdateVoucherRequest) (database.Voucher, error)
}

// VoucherHandler handles discount voucher endpoints.
type VoucherHandler struct {
	store VoucherStore
	svc   VoucherCatalogServicer
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(store VoucherStore, svc VoucherCatalogServicer) *VoucherHandler {
	return &VoucherHandler{store: store, svc: svc}
}

// RegisterRoutes registers the voucher endpoints open to any
// authenticated user.
func (h *VoucherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// RegisterAdminRoutes registers the voucher mutations; the router mounts
// these behind the admin role.
func (h *VoucherHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type voucherRequest struct {
	Name       string `json:"name"`
	Percentage string `json:"percentage"`
}

type voucherResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Percentage string    `json:"percentage"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedBy  string    `json:"created_by"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  string    `json:"updated_by"`
}

func toVoucherResponse(v database.Voucher) voucherResponse {
	return voucherResponse{
		ID:         v.ID,
		Name:       v.Name,
		Percentage: numericToString(v.Percentage),
		IsActive:   v.IsActive,
		CreatedAt:  v.CreatedAt,
		CreatedBy:  v.CreatedBy,
		UpdatedAt:  v.UpdatedAt,
		UpdatedBy:  v.UpdatedBy,
	}
}

// List returns vouchers, optionally filtered by name substring and active flag.
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	params := database.ListVouchersParams{
		Name: r.URL.Query().Get("name"),
	}
	switch r.URL.Query().Get("is_active") {
	case "true":
		params.IsActive = pgtype.Bool{Bool: true, Valid: true}
	case "false":
		params.IsActive = pgtype.Bool{Bool: false, Valid: true}
	}

	vouchers, err := h.store.ListVouchers(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list vouchers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]voucherResponse, len(vouchers))
	for i, v := range vouchers {
		resp[i] = toVoucherResponse(v)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single voucher by ID.
func (h *VoucherHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher ID"})
		return
	}

	voucher, err := h.store.GetVoucher(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "voucher not found"})
			return
		}
		log.Printf("ERROR: get voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toVoucherResponse(voucher))
}

// Create adds a new voucher.
func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	percentage, err := parseVoucherPercentage(req.Percentage)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	voucher, err := h.store.CreateVoucher(r.Context(), database.CreateVoucherParams{
		Name:       req.Name,
		Percentage: percentage,
		CreatedBy:  claims.Username,
	})
	if err != nil {
		log.Printf("ERROR: create voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toVoucherResponse(voucher))
}

// Update edits a voucher. A percentage change forks a fresh voucher row
// and deactivates this one.
func (h *VoucherHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher ID"})
		return
	}

	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	voucher, err := h.svc.UpdateVoucher(r.Context(), actorFromClaims(claims), id, service.UpdateVoucherRequest{
		Name:       req.Name,
		Percentage: req.Percentage,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVoucherMissing):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidPercentage), errors.Is(err, service.ErrMalformedPercentage):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update voucher: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toVoucherResponse(voucher))
}

// Delete soft-deletes a voucher by setting is_active=false.
func (h *VoucherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher ID"})
		return
	}

	_, err = h.store.DeactivateVoucher(r.Context(), database.DeactivateVoucherParams{
		ID:        id,
		UpdatedBy: claims.Username,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "voucher not found"})
			return
		}
		log.Printf("ERROR: delete voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseVoucherPercentage(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, errors.New("invalid percentage")
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return pgtype.Numeric{}, errors.New("percentage must be between 0 and 100")
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}
