package handlers

import (
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/rs/zerolog"
)

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	svc *finance.Service
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc *finance.Service, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{svc: svc, log: log}
}

// ListCategories handles GET /categories/
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cats)
}

// CreateCategory handles POST /categories/
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req finance.CategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, c)
}

// DeleteCategory handles DELETE /categories/{id}. With ?cascade=true the
// category's transactions become uncategorized and its budgets are removed.
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	cascade := false
	if v := r.URL.Query().Get("cascade"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "cascade must be true or false")
			return
		}
		cascade = parsed
	}

	id := r.PathValue("id")
	if err := h.svc.DeleteCategory(r.Context(), middleware.UserID(r.Context()), id, cascade); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	h.log.Info().Str("category_id", id).Bool("cascade", cascade).Msg("Category deleted")
	w.WriteHeader(http.StatusNoContent)
}
