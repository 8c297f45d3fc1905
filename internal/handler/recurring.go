package handler

import (
	"net/http"

	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/recurring"
)

type RecurringHandler struct {
	Responder
	recurring *recurring.Service
}

func NewRecurringHandler(rs Responder, svc *recurring.Service) *RecurringHandler {
	return &RecurringHandler{Responder: rs, recurring: svc}
}

// List handles GET /api/recurring
func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	list, err := h.recurring.List(r.Context(), ac)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if list == nil {
		list = []model.RecurringChore{}
	}
	h.ok(w, list)
}

// Get handles GET /api/recurring/{id}
func (h *RecurringHandler) Get(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	tpl, err := h.recurring.Get(r.Context(), ac, id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, tpl)
}

// Create handles POST /api/recurring
func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req recurring.Input
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	tpl, err := h.recurring.Create(r.Context(), ac, req)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, tpl)
}

// Update handles PUT /api/recurring/{id}
func (h *RecurringHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	var p recurring.Patch
	if err := decodeJSON(r, &p); err != nil {
		h.error(w, r, err)
		return
	}
	tpl, err := h.recurring.Update(r.Context(), ac, id, p)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, tpl)
}

// Delete handles DELETE /api/recurring/{id}
func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if err := h.recurring.Delete(r.Context(), ac, id); err != nil {
		h.error(w, r, err)
		return
	}
	h.message(w, "recurring chore deleted")
}

// History handles GET /api/recurring/{id}/history
func (h *RecurringHandler) History(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	hist, err := h.recurring.History(r.Context(), ac, id, queryLimit(r, recurring.DefaultHistoryLimit))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, hist)
}

type generateRequest struct {
	RecurringID      int64 `json:"recurringId"`
	RecurringIDSnake int64 `json:"recurring_id"`
}

// Generate handles POST /api/recurring/generate. Without a recurring id every
// due template of the family is generated.
func (h *RecurringHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	id := req.RecurringID
	if id == 0 {
		id = req.RecurringIDSnake
	}
	if id < 0 {
		h.badRequest(w, r, "invalid recurring id")
		return
	}

	res, err := h.recurring.Generate(r.Context(), ac, id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if res.Generated == nil {
		res.Generated = []model.Chore{}
	}
	if res.Failed == nil {
		res.Failed = []recurring.Failure{}
	}
	h.ok(w, res)
}
