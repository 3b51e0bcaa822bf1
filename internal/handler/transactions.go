package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopjum-pos/api/internal/auth"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/middleware"
	"github.com/kopjum-pos/api/internal/service"
	"github.com/shopspring/decimal"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// TransactionStore defines the database methods needed for reads.
// Satisfied by *database.Queries; narrow interface for testability.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (database.Transaction, error)
	ListTransactions(ctx context.Context, arg database.ListTransactionsParams) ([]database.Transaction, error)
	CountTransactions(ctx context.Context, arg database.ListTransactionsParams) (int64, error)
	ListTransactionLines(ctx context.Context, transactionID uuid.UUID) ([]database.TransactionLineRow, error)
}

// TransactionServicer defines the service methods needed for mutations.
// Satisfied by *service.TransactionService.
type TransactionServicer interface {
	Create(ctx context.Context, actor service.Actor, req service.TransactionRequest) (*service.TransactionResult, error)
	Update(ctx context.Context, actor service.Actor, id uuid.UUID, req service.TransactionRequest) (*service.TransactionResult, error)
	ToggleStatus(ctx context.Context, actor service.Actor, id uuid.UUID) (database.Transaction, error)
}

// EventPublisher pushes events to the live feed. Satisfied by *ws.Hub.
type EventPublisher interface {
	Publish(eventType string, payload any)
}

// TransactionHandler handles bill endpoints.
type TransactionHandler struct {
	store TransactionStore
	svc   TransactionServicer
	pub   EventPublisher
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(store TransactionStore, svc TransactionServicer, pub EventPublisher) *TransactionHandler {
	return &TransactionHandler{store: store, svc: svc, pub: pub}
}

// RegisterRoutes registers bill endpoints on the given Chi router.
func (h *TransactionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/status", h.ToggleStatus)
}

// --- Request / Response types ---

type lineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
}

type transactionRequest struct {
	Customer  string        `json:"customer"`
	Method    string        `json:"method"`
	VoucherID string        `json:"voucher_id,omitempty"`
	Items     []lineRequest `json:"items"`
}

type transactionResponse struct {
	ID        uuid.UUID `json:"id"`
	Customer  string    `json:"customer"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Total     string    `json:"total"`
	VoucherID *string   `json:"voucher_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by"`
}

type lineResponse struct {
	ID       uuid.UUID `json:"id"`
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int32     `json:"quantity"`
}

type transactionDetailResponse struct {
	transactionResponse
	Subtotal string              `json:"subtotal"`
	Discount string              `json:"discount"`
	Items    []receiptLineDetail `json:"items"`
}

type receiptLineDetail struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Category  string    `json:"category"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int32     `json:"quantity"`
	LineTotal string    `json:"line_total"`
}

type createdResponse struct {
	transactionResponse
	Items []lineResponse `json:"items"`
}

type listResponse struct {
	Data  []transactionResponse `json:"data"`
	Page  int32                 `json:"page"`
	Limit int32                 `json:"limit"`
	Total int64                 `json:"total"`
}

func toTransactionResponse(t database.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:        t.ID,
		Customer:  t.Customer,
		Method:    t.Method,
		Status:    t.Status,
		Total:     numericToString(t.Total),
		CreatedAt: t.CreatedAt,
		CreatedBy: t.CreatedBy,
		UpdatedAt: t.UpdatedAt,
		UpdatedBy: t.UpdatedBy,
	}
	if t.VoucherID.Valid {
		id := uuid.UUID(t.VoucherID.Bytes).String()
		resp.VoucherID = &id
	}
	return resp
}

func toCreatedResponse(res *service.TransactionResult) createdResponse {
	lines := make([]lineResponse, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = lineResponse{ID: l.ID, ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return createdResponse{
		transactionResponse: toTransactionResponse(res.Transaction),
		Items:               lines,
	}
}

// --- Handlers ---

// Create opens a new bill with its item lines.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Create(r.Context(), actorFromClaims(claims), toServiceRequest(req))
	if err != nil {
		writeTransactionError(w, err, "create transaction")
		return
	}

	resp := toCreatedResponse(result)
	h.pub.Publish("transaction.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns bills ordered by updated_at desc, paginated, optionally
// filtered by status and an updated_at range in unix milliseconds.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := parsePositiveInt(q.Get("page"), defaultPage)
	limit := parsePositiveInt(q.Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	params := database.ListTransactionsParams{
		Status: q.Get("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	var err error
	if params.From, err = parseMillis(q.Get("from")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
		return
	}
	if params.To, err = parseMillis(q.Get("to")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
		return
	}

	transactions, err := h.store.ListTransactions(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	total, err := h.store.CountTransactions(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: count transactions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	data := make([]transactionResponse, len(transactions))
	for i, t := range transactions {
		data[i] = toTransactionResponse(t)
	}

	writeJSON(w, http.StatusOK, listResponse{Data: data, Page: page, Limit: limit, Total: total})
}

// Get returns a single bill with its joined item lines as a receipt.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	transaction, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
			return
		}
		log.Printf("ERROR: get transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	lines, err := h.store.ListTransactionLines(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list transaction lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Subtotal is rebuilt from the persisted line prices; the discount is
	// the difference to the stored total, so the receipt always adds up.
	subtotal := decimal.Zero
	items := make([]receiptLineDetail, len(lines))
	for i, l := range lines {
		unit := numericToDec(l.ItemPrice)
		lineTotal := unit.Mul(decimal.NewFromInt32(l.Quantity))
		subtotal = subtotal.Add(lineTotal)
		items[i] = receiptLineDetail{
			ItemID:    l.ItemID,
			Name:      l.ItemName,
			Type:      l.ItemType,
			Category:  l.ItemCategory,
			UnitPrice: unit.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: lineTotal.StringFixed(2),
		}
	}
	discount := subtotal.Sub(numericToDec(transaction.Total))

	writeJSON(w, http.StatusOK, transactionDetailResponse{
		transactionResponse: toTransactionResponse(transaction),
		Subtotal:            subtotal.StringFixed(2),
		Discount:            discount.StringFixed(2),
		Items:               items,
	})
}

// Update replaces a bill's details and lines. Closed bills reject edits
// from non-admins before any pricing work happens.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	actor := actorFromClaims(claims)

	current, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
			return
		}
		log.Printf("ERROR: get transaction: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !service.IsEditable(current.Status, actor) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "bill is closed"})
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Update(r.Context(), actor, id, toServiceRequest(req))
	if err != nil {
		writeTransactionError(w, err, "update transaction")
		return
	}

	resp := toCreatedResponse(result)
	h.pub.Publish("transaction.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// ToggleStatus flips a bill between open and closed. Only an admin may
// reopen a closed bill.
func (h *TransactionHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid transaction ID"})
		return
	}

	transaction, err := h.svc.ToggleStatus(r.Context(), actorFromClaims(claims), id)
	if err != nil {
		writeTransactionError(w, err, "toggle transaction status")
		return
	}

	resp := toTransactionResponse(transaction)
	h.pub.Publish("transaction.status_changed", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toServiceRequest(req transactionRequest) service.TransactionRequest {
	items := make([]service.LineRequest, len(req.Items))
	for i, l := range req.Items {
		items[i] = service.LineRequest{ItemID: l.ItemID, Quantity: l.Quantity}
	}
	return service.TransactionRequest{
		Customer:  req.Customer,
		Method:    req.Method,
		VoucherID: req.VoucherID,
		Items:     items,
	}
}

func writeTransactionError(w http.ResponseWriter, err error, op string) {
	var notFound *service.ItemNotFoundError
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.As(err, &notFound),
		errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrCustomerRequired),
		errors.Is(err, service.ErrInvalidMethod),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidItemID),
		errors.Is(err, service.ErrInvalidVoucherID),
		errors.Is(err, service.ErrVoucherNotFound):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func actorFromClaims(claims *auth.Claims) service.Actor {
	return service.Actor{Username: claims.Username, Role: claims.Role}
}

func parsePositiveInt(s string, fallback int32) int32 {
	if s == "" {
		return fallback
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 1 {
		return fallback
	}
	return int32(n)
}

// parseMillis parses a unix-millisecond query value into a timestamptz
// bound. An empty value yields an invalid (unset) bound.
func parseMillis(s string) (pgtype.Timestamptz, error) {
	if s == "" {
		return pgtype.Timestamptz{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return pgtype.Timestamptz{}, err
	}
	return pgtype.Timestamptz{Time: time.UnixMilli(ms), Valid: true}, nil
}

func numericToDec(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func numericToString(n pgtype.Numeric) string {
	return numericToDec(n).StringFixed(2)
}
