package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/choreboard/choreboard/internal/backup"
)

const defaultBackupLimit = 30

type BackupHandler struct {
	Responder
	manager *backup.Manager
}

func NewBackupHandler(rs Responder, m *backup.Manager) *BackupHandler {
	return &BackupHandler{Responder: rs, manager: m}
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.List(r.Context(), queryLimit(r, defaultBackupLimit))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.ok(w, map[string]any{"backups": list, "status": h.manager.Status()})
}

// Create handles POST /api/backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.created(w, b)
}

// Download handles GET /api/backups/{id}/download. The stored bytes are
// returned as-is, encrypted when a passphrase is configured.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.error(w, r, err)
		return
	}
	rc, b, err := h.manager.Open(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+b.Filename+`"`)
	if b.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(b.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream backup", "backup_id", b.ID, "error", err)
	}
}

