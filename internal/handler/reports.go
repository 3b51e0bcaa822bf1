package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopjum-pos/api/internal/database"
	"github.com/kopjum-pos/api/internal/enum"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetIncomeTotal(ctx context.Context, arg database.IncomeRangeParams) (pgtype.Numeric, error)
	GetDailyIncome(ctx context.Context, arg database.IncomeRangeParams) ([]database.DailyIncomeRow, error)
	GetIncomeByMethod(ctx context.Context, arg database.IncomeRangeParams) ([]database.MethodIncomeRow, error)
	GetDailyIncomeByMethod(ctx context.Context, arg database.IncomeRangeParams) ([]database.DailyMethodIncomeRow, error)
}

// ReportsHandler handles income analytics endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/income", h.Income)
}

type dailyIncome struct {
	Date     string            `json:"date"`
	Total    string            `json:"total"`
	ByMethod map[string]string `json:"by_method"`
}

type incomeResponse struct {
	Total    string            `json:"total"`
	ByMethod map[string]string `json:"by_method"`
	Daily    []dailyIncome     `json:"daily"`
}

// Income summarizes closed-bill revenue in the requested range: grand
// total, per payment method, and per day. Every payment method appears
// in by_method even when it took no money, so UI tables stay stable.
func (h *ReportsHandler) Income(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := database.IncomeRangeParams{}
	var err error
	if params.From, err = parseMillis(q.Get("from")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from"})
		return
	}
	if params.To, err = parseMillis(q.Get("to")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to"})
		return
	}

	total, err := h.store.GetIncomeTotal(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: income total: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	byMethod, err := h.store.GetIncomeByMethod(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: income by method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	daily, err := h.store.GetDailyIncome(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: daily income: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	dailyByMethod, err := h.store.GetDailyIncomeByMethod(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: daily income by method: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := incomeResponse{
		Total:    numericToString(total),
		ByMethod: fullMethodMap(),
		Daily:    []dailyIncome{},
	}
	for _, row := range byMethod {
		resp.ByMethod[row.Method] = numericToString(row.Total)
	}

	perDayMethods := make(map[string]map[string]string)
	for _, row := range dailyByMethod {
		day := row.Day.Format("2006-01-02")
		if perDayMethods[day] == nil {
			perDayMethods[day] = fullMethodMap()
		}
		perDayMethods[day][row.Method] = numericToString(row.Total)
	}

	for _, row := range daily {
		day := row.Day.Format("2006-01-02")
		methods := perDayMethods[day]
		if methods == nil {
			methods = fullMethodMap()
		}
		resp.Daily = append(resp.Daily, dailyIncome{
			Date:     day,
			Total:    numericToString(row.Total),
			ByMethod: methods,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func fullMethodMap() map[string]string {
	m := make(map[string]string, len(enum.PaymentMethods))
	for _, method := range enum.PaymentMethods {
		m[method] = "0.00"
	}
	return m
}
