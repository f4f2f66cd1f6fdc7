package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/auth"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/rs/zerolog"
)

// AuthHandler handles registration, login and the current-user endpoint.
type AuthHandler struct {
	auth    *auth.Service
	finance *finance.Service
	log     zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authSvc *auth.Service, financeSvc *finance.Service, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, finance: financeSvc, log: log}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}

	u, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	h.log.Info().Str("user_id", u.ID).Msg("User registered")
	middleware.WriteJSON(w, http.StatusCreated, u)
}

// Login handles POST /auth/login. It accepts an OAuth2-style form
// (username, password) or the same fields as JSON.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var username, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteServiceError(w, r, err)
			return
		}
		username, password = req.Username, req.Password
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid form body")
			return
		}
		username, password = r.PostForm.Get("username"), r.PostForm.Get("password")
	}

	tok, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tok)
}

// Me handles GET /users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.finance.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, u)
}
