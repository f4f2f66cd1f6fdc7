package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BudgetsHandler handles budget-related endpoints.
type BudgetsHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(svc *finance.Service, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{svc: svc, log: log}
}

// ListBudgets handles GET /budgets/
func (h *BudgetsHandler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.svc.ListBudgets(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, budgets)
}

// CreateBudget handles POST /budgets/
func (h *BudgetsHandler) CreateBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string              `json:"category_id"`
		Amount     decimal.NullDecimal `json:"amount"`
		Period     string              `json:"period"`
		StartDate  string              `json:"start_date"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	start, err := domain.ParseDate("start_date", req.StartDate)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	amount, err := requiredAmount(req.Amount)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	b, err := h.svc.CreateBudget(r.Context(), middleware.UserID(r.Context()), finance.BudgetInput{
		CategoryID: req.CategoryID,
		Amount:     amount,
		Period:     req.Period,
		StartDate:  start,
	})
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, b)
}

// DeleteBudget handles DELETE /budgets/{id}
func (h *BudgetsHandler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBudget(r.Context(), middleware.UserID(r.Context()), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Performance handles GET /budgets/performance?month_start=YYYY-MM-DD.
// Without month_start the current month is evaluated.
func (h *BudgetsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	month, err := optionalDate(r, "month_start")
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	perf, err := h.svc.Performance(r.Context(), middleware.UserID(r.Context()), month)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	w.Header().Set(finance.HeaderMonthStart, perf.MonthStart.Format(domain.DateLayout))
	for _, a := range perf.Anomalies {
		w.Header().Add(finance.HeaderAnomaly, strings.Map(headerSafe, a))
	}
	middleware.WriteJSON(w, http.StatusOK, perf.Lines)
}

func headerSafe(r rune) rune {
	if r < ' ' || r == 0x7f {
		return ' '
	}
	return r
}
