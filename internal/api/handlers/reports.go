package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/reports"
	"github.com/rs/zerolog"
)

// ReportsHandler submits report jobs, reports their status and serves the
// finished PDFs.
type ReportsHandler struct {
	orchestrator *reports.Orchestrator
	log          zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(orchestrator *reports.Orchestrator, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{orchestrator: orchestrator, log: log}
}

// Generate handles POST /reports/generate?month=January%202024
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	job, err := h.orchestrator.Submit(r.Context(), middleware.UserID(r.Context()), r.URL.Query().Get("month"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id":     job.TaskID,
		"task_status": string(job.Status),
		"message":     "Report generation started",
	})
}

// Status handles GET /reports/status/{task_id}
func (h *ReportsHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.orchestrator.Poll(r.Context(), middleware.UserID(r.Context()), r.PathValue("task_id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// Download handles GET /reports/download/{filename}. The path segment may
// also be a task id.
func (h *ReportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	name, data, err := h.orchestrator.Fetch(r.Context(), middleware.UserID(r.Context()), r.PathValue("filename"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Warn().Err(err).Str("filename", name).Msg("Failed to write report body")
	}
}
