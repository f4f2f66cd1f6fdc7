// Package handlers implements the HTTP endpoints. Every handler reads the
// caller from middleware.UserID and maps service errors with
// middleware.WriteServiceError.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ValidationError{Field: "body", Reason: "request body is required"}
		}
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

// requiredAmount rejects an amount that was absent or null in the request.
func requiredAmount(v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Decimal{}, &domain.ValidationError{Field: "amount", Reason: "is required"}
	}
	return v.Decimal, nil
}

// optionalDate parses a YYYY-MM-DD query parameter; absent yields the zero time.
func optionalDate(r *http.Request, name string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(name, v)
}

// HealthHandler reports liveness.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}
