package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/model"
	"github.com/choreboard/choreboard/internal/store"
)

// VAPIDKeyer exposes the public application server key. It is nil when push
// is not configured.
type VAPIDKeyer interface {
	VAPIDPublicKey() string
}

type PushHandler struct {
	Responder
	subscriptions *store.PushStore
	keys          VAPIDKeyer
	now           func() time.Time
}

func NewPushHandler(rs Responder, ps *store.PushStore, keys VAPIDKeyer) *PushHandler {
	return &PushHandler{Responder: rs, subscriptions: ps, keys: keys, now: time.Now}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
	// Keys is the shape PushSubscription.toJSON() produces in browsers.
	Keys struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.error(w, r, err)
		return
	}
	if req.P256dh == "" {
		req.P256dh = req.Keys.P256dh
	}
	if req.Auth == "" {
		req.Auth = req.Keys.Auth
	}

	var fields apperr.Fields
	if !strings.HasPrefix(req.Endpoint, "https://") {
		fields.Add("endpoint", "endpoint must be an https URL", req.Endpoint)
	}
	if req.P256dh == "" {
		fields.Add("p256dh", "p256dh key is required", nil)
	}
	if req.Auth == "" {
		fields.Add("auth", "auth key is required", nil)
	}
	if err := fields.Err(); err != nil {
		h.error(w, r, err)
		return
	}

	sub, err := h.subscriptions.Save(r.Context(), model.PushSubscription{
		UserID:     ac.UserID,
		FamilyID:   ac.FamilyID,
		Endpoint:   req.Endpoint,
		P256dhKey:  req.P256dh,
		AuthKey:    req.Auth,
		DeviceName: strings.TrimSpace(req.DeviceName),
	}, h.now())
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, sub)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.error(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	h.ok(w, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	found, err := h.subscriptions.Delete(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if !found {
		h.error(w, r, apperr.NotFound("subscription not found"))
		return
	}
	h.message(w, "subscription removed")
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if h.keys == nil || h.keys.VAPIDPublicKey() == "" {
		h.error(w, r, apperr.NotFound("push notifications are not configured"))
		return
	}
	h.ok(w, map[string]string{"public_key": h.keys.VAPIDPublicKey()})
}
