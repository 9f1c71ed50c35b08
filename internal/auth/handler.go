package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarian/internal/httpjson"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.HandleLogin)
	r.With(RequireBearer(h.service)).Post("/logout", h.HandleLogout)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		httpjson.Write(w, http.StatusOK, session)
	case errors.Is(err, ErrInvalidCredentials):
		httpjson.Error(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		httpjson.Error(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, ErrLoginDisabled):
		httpjson.Error(w, http.StatusForbidden, "login_disabled", err.Error())
	default:
		httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
