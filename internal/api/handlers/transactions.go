package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/dvloznov/finance-analytics/internal/ingest"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxUploadBytes caps statement uploads.
const maxUploadBytes = 10 << 20

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc      *finance.Service
	importer *ingest.Importer
	log      zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *finance.Service, importer *ingest.Importer, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, importer: importer, log: log}
}

type transactionRequest struct {
	Date        string              `json:"date"`
	Amount      decimal.NullDecimal `json:"amount"`
	Description string              `json:"description"`
	CategoryID  string              `json:"category_id"`
	IsRecurring bool                `json:"is_recurring"`
}

func (req transactionRequest) input() (finance.TransactionInput, error) {
	date, err := domain.ParseDate("date", req.Date)
	if err != nil {
		return finance.TransactionInput{}, err
	}
	amount, err := requiredAmount(req.Amount)
	if err != nil {
		return finance.TransactionInput{}, err
	}
	return finance.TransactionInput{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  req.CategoryID,
		IsRecurring: req.IsRecurring,
	}, nil
}

// ListTransactions handles GET /transactions/?start_date&end_date&category_id.
// end_date is inclusive; category_id=uncategorized selects uncategorized rows.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	start, err := optionalDate(r, "start_date")
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	end, err := optionalDate(r, "end_date")
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	filter := domain.TransactionFilter{Start: start}
	if !end.IsZero() {
		filter.End = end.AddDate(0, 0, 1)
	}
	if q := r.URL.Query(); q.Has("category_id") {
		id := q.Get("category_id")
		if strings.EqualFold(id, "uncategorized") {
			id = domain.Uncategorized
		}
		filter.CategoryID = &id
	}

	txns, err := h.svc.ListTransactions(r.Context(), middleware.UserID(r.Context()), filter)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txns)
}

// CreateTransaction handles POST /transactions/
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	t, err := h.svc.CreateTransaction(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, t)
}

// GetTransaction handles GET /transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTransaction(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, t)
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	t, err := h.svc.UpdateTransaction(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, t)
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTransaction(r.Context(), middleware.UserID(r.Context()), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /transactions/upload with a multipart "file" field
// holding a CSV statement.
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		middleware.WriteError(w, http.StatusBadRequest, "Only CSV files are supported")
		return
	}

	userID := middleware.UserID(r.Context())
	sum, err := h.importer.Import(r.Context(), userID, file)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sum)
}

// Summary handles GET /transactions/summary?start_date&end_date, both
// required and inclusive.
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := domain.ParseDate("start_date", q.Get("start_date"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	end, err := domain.ParseDate("end_date", q.Get("end_date"))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	rows, err := h.svc.Summary(r.Context(), middleware.UserID(r.Context()), start, end)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, rows)
}
