package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/account"
	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/model"
)

type UserHandler struct {
	Responder
	accounts *account.Service
	chores   *chore.Service
}

func NewUserHandler(rs Responder, accounts *account.Service, chores *chore.Service) *UserHandler {
	return &UserHandler{Responder: rs, accounts: accounts, chores: chores}
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	users, err := h.accounts.ListMembers(r.Context(), ac)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	h.ok(w, users)
}

// Create handles POST /api/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req account.MemberInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	user, err := h.accounts.AddMember(r.Context(), ac, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, user)
}

// Update handles PATCH /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var req account.MemberPatch
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	user, err := h.accounts.UpdateMember(r.Context(), ac, id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, user)
}

// targetUser resolves the {id} path value, where "me" is the caller.
func targetUser(r *http.Request, ac auth.AuthContext) (int64, error) {
	if r.PathValue("id") == "me" {
		return ac.UserID, nil
	}
	return parseIDParam(r)
}

// statusFilter parses ?status=a,b into chore statuses.
func statusFilter(r *http.Request) ([]model.ChoreStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	var out []model.ChoreStatus
	for _, s := range strings.Split(raw, ",") {
		st := model.ChoreStatus(strings.TrimSpace(s))
		if !st.Valid() {
			return nil, apperr.Validation("unknown status", apperr.FieldError{Field: "status", Message: "unknown status", Value: s})
		}
		out = append(out, st)
	}
	return out, nil
}

// Chores handles GET /api/users/{id}/chores and GET /api/users/me/chores
func (h *UserHandler) Chores(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID, err := targetUser(r, ac)
	if err != nil {
		h.error(w, r, err)
		return
	}
	statuses, err := statusFilter(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	list, err := h.chores.ListForUser(r.Context(), ac, userID, statuses)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if list == nil {
		list = []model.Chore{}
	}
	h.ok(w, list)
}

// Completed handles GET /api/users/{id}/completed
func (h *UserHandler) Completed(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID, err := targetUser(r, ac)
	if err != nil {
		h.error(w, r, err)
		return
	}

	var since *time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			if t, err = time.Parse(time.DateOnly, v); err != nil {
				h.badRequest(w, r, "since must be a date or RFC 3339 timestamp")
				return
			}
		}
		since = &t
	}

	earnings, err := h.chores.ListCompletedForUser(r.Context(), ac, userID, since)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, earnings)
}
