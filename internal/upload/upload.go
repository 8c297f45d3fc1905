// Package upload validates chore photos and files them in storage.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/storage"
)

const DefaultMaxBytes = 10 << 20

// sniffLen is how much of the file http.DetectContentType looks at.
const sniffLen = 512

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Photos stores chore photos under chores/<chore-id>/<uuid><ext>.
type Photos struct {
	store    storage.Storage
	maxBytes int64
}

func NewPhotos(store storage.Storage, maxBytes int64) *Photos {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Photos{store: store, maxBytes: maxBytes}
}

func (p *Photos) MaxBytes() int64 { return p.maxBytes }

// SaveChorePhoto checks the content and size of r and stores it. The type is
// sniffed from the data; the client-declared type is not trusted.
func (p *Photos) SaveChorePhoto(ctx context.Context, choreID int64, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return "", apperr.Validation("photo is too large",
			apperr.FieldError{Field: "photo", Message: fmt.Sprintf("must be at most %d bytes", p.maxBytes)})
	}
	if len(data) == 0 {
		return "", apperr.Validation("photo is empty", apperr.FieldError{Field: "photo", Message: "file is empty"})
	}

	contentType := http.DetectContentType(data[:min(len(data), sniffLen)])
	ext, ok := extensions[contentType]
	if !ok {
		return "", apperr.Validation("unsupported photo type",
			apperr.FieldError{Field: "photo", Message: "must be a jpeg, png, gif or webp image", Value: contentType})
	}

	key := fmt.Sprintf("chores/%d/%s%s", choreID, uuid.NewString(), ext)
	if _, err := p.store.Save(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}
	return key, nil
}

// Open returns a stored photo and its content type.
func (p *Photos) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	rc, err := p.store.Open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentTypeOf(key), nil
}

// Delete removes a stored photo.
func (p *Photos) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, key)
}

// ChoreIDFromKey extracts the chore id from a photo key.
func ChoreIDFromKey(key string) (int64, bool) {
	k, err := storage.CleanKey(key)
	if err != nil {
		return 0, false
	}
	parts := strings.Split(k, "/")
	if len(parts) != 3 || parts[0] != "chores" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func contentTypeOf(key string) string {
	for ct, ext := range extensions {
		if strings.HasSuffix(key, ext) {
			return ct
		}
	}
	return "application/octet-stream"
}
