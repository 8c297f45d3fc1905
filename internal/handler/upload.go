package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/chore"
	"github.com/choreboard/choreboard/internal/storage"
	"github.com/choreboard/choreboard/internal/upload"
)

type UploadHandler struct {
	Responder
	photos *upload.Photos
	chores *chore.Service
}

func NewUploadHandler(rs Responder, photos *upload.Photos, chores *chore.Service) *UploadHandler {
	return &UploadHandler{Responder: rs, photos: photos, chores: chores}
}

// Serve handles GET /uploads/{key...}. A photo is visible to anyone who can
// see its chore.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	key := r.PathValue("key")

	choreID, ok := upload.ChoreIDFromKey(key)
	if !ok {
		h.error(w, r, apperr.NotFound("file not found"))
		return
	}
	if _, err := h.chores.Get(r.Context(), ac, choreID); err != nil {
		h.error(w, r, err)
		return
	}

	rc, contentType, err := h.photos.Open(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		h.error(w, r, apperr.NotFound("file not found"))
		return
	}
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream upload", "key", key, "error", err)
	}
}
