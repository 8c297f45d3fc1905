package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/model"
)

type ChoreHandler struct {
	Responder
	chores *chore.Service
	// maxUpload bounds a multipart submission including its photo.
	maxUpload int64
}

func NewChoreHandler(rs Responder, chores *chore.Service, maxUpload int64) *ChoreHandler {
	return &ChoreHandler{Responder: rs, chores: chores, maxUpload: maxUpload}
}

// Create handles POST /api/chores
func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req chore.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	c, err := h.chores.Create(r.Context(), ac, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, c)
}

// List handles GET /api/chores
func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	statuses, err := statusFilter(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	f := chore.ListFilter{Statuses: statuses, Limit: queryLimit(r, 0)}
	if v := r.URL.Query().Get("assigned_to"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.badRequest(w, r, "assigned_to must be a user id")
			return
		}
		f.AssignedTo = &id
	}

	list, err := h.chores.List(r.Context(), ac, f)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if list == nil {
		list = []model.Chore{}
	}
	h.ok(w, list)
}

// Summary handles GET /api/chores/summary
func (h *ChoreHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	sum, err := h.chores.Summary(r.Context(), ac)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, sum)
}

// Get handles GET /api/chores/{id}
func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	detail, err := h.chores.Get(r.Context(), ac, id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, detail)
}

// Update handles PATCH /api/chores/{id}
func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var p chore.Patch
	if err := decodeJSON(r, &p); err != nil {
		h.error(w, r, err)
		return
	}
	c, err := h.chores.Update(r.Context(), ac, id, p)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, c)
}

// Delete handles DELETE /api/chores/{id}
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if err := h.chores.Delete(r.Context(), ac, id); err != nil {
		h.error(w, r, err)
		return
	}
	h.message(w, "chore deleted")
}

// Assign handles POST /api/chores/{id}/assign
func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var req chore.AssignInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	c, err := h.chores.Assign(r.Context(), ac, id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, c)
}

// Accept handles POST /api/chores/{id}/accept
func (h *ChoreHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.chores.Accept)
}

// Decline handles POST /api/chores/{id}/decline
func (h *ChoreHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.chores.Decline)
}

func (h *ChoreHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ac auth.AuthContext, id int64) (*model.Chore, error)) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	c, err := fn(r.Context(), ac, id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, c)
}

// Submit handles POST /api/chores/{id}/submit. The body is either JSON
// {"notes": "..."} or multipart form data with notes and an optional photo.
func (h *ChoreHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	var in chore.SubmitInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.error(w, r, apperr.Validation("upload is too large"))
				return
			}
			h.badRequest(w, r, "invalid multipart form")
			return
		}
		defer r.MultipartForm.RemoveAll()

		in.Notes = r.FormValue("notes")
		file, _, err := r.FormFile("photo")
		switch {
		case err == nil:
			defer file.Close()
			in.Photo = file
		case errors.Is(err, http.ErrMissingFile):
		default:
			h.badRequest(w, r, "invalid photo field")
			return
		}
	} else {
		var req struct {
			Notes string `json:"notes"`
		}
		if err := decodeJSON(r, &req); err != nil {
			h.error(w, r, err)
			return
		}
		in.Notes = req.Notes
	}

	sub, err := h.chores.Submit(r.Context(), ac, id, in)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, sub)
}

// Approve handles POST /api/chores/{id}/approve
func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var req chore.ReviewInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	res, err := h.chores.Approve(r.Context(), ac, id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, res)
}

// Reject handles POST /api/chores/{id}/reject
func (h *ChoreHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var req chore.ReviewInput
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	c, err := h.chores.Reject(r.Context(), ac, id, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, c)
}
