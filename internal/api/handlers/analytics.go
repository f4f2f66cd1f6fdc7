package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/rs/zerolog"
)

// AnalyticsHandler serves the trend series and the spend forecast.
type AnalyticsHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc *finance.Service, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, log: log}
}

// Trends handles GET /analytics/trends
func (h *AnalyticsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	months, err := h.svc.Trends(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, months)
}

// Forecast handles GET /analytics/forecast
func (h *AnalyticsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Forecast(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, f)
}
