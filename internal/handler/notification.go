package handler

import (
	"net/http"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/store"
)

const defaultNotificationLimit = 50

type NotificationHandler struct {
	Responder
	notifications *store.NotificationStore
}

func NewNotificationHandler(rs Responder, ns *store.NotificationStore) *NotificationHandler {
	return &NotificationHandler{Responder: rs, notifications: ns}
}

// List handles GET /api/notifications. ?unread=true limits to unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"

	list, err := h.notifications.ListByUser(r.Context(), userID, unreadOnly, queryLimit(r, defaultNotificationLimit))
	if err != nil {
		h.error(w, r, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	unread, err := h.notifications.CountUnread(r.Context(), userID)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, map[string]any{"notifications": list, "unread": unread})
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	found, err := h.notifications.MarkRead(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if !found {
		h.error(w, r, apperr.NotFound("notification not found"))
		return
	}
	h.message(w, "notification marked read")
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, map[string]int64{"marked": n})
}
