package handler

import (
	"net/http"

	"github.com/choreboard/choreboard/internal/account"
	"github.com/choreboard/choreboard/internal/auth"
)

type AuthHandler struct {
	Responder
	accounts *account.Service
}

func NewAuthHandler(rs Responder, accounts *account.Service) *AuthHandler {
	return &AuthHandler{Responder: rs, accounts: accounts}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	sess, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, sess)
}

// Join handles POST /api/auth/join
func (h *AuthHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req account.JoinInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	sess, err := h.accounts.Join(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, sess)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	user, family, err := h.accounts.Me(r.Context(), ac)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, map[string]any{"user": user, "family": family})
}
