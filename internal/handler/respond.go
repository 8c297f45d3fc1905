package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/choreboard/choreboard/internal/apperr"
)

// maxJSONBody caps decoded request bodies.
const maxJSONBody = 1 << 20

// envelope is the shape of every API response.
type envelope struct {
	Status  string              `json:"status"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// Responder renders envelopes. Detailed exposes internal error messages,
// which is only wanted outside production.
type Responder struct {
	logger   *slog.Logger
	detailed bool
}

func NewResponder(logger *slog.Logger, detailed bool) Responder {
	return Responder{logger: logger, detailed: detailed}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (Responder) ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func (Responder) created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

func (Responder) message(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: msg})
}

// error maps err to its status code. 4xx responses are "fail", 5xx "error".
func (rs Responder) error(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Wrap(apperr.KindInternal, "internal server error", err)
	}
	status := ae.Kind.HTTPStatus()

	if status >= 500 {
		rs.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg := "internal server error"
		if rs.detailed {
			msg = err.Error()
		}
		writeJSON(w, status, envelope{Status: "error", Message: msg})
		return
	}
	writeJSON(w, status, envelope{Status: "fail", Message: ae.Message, Errors: ae.Fields})
}

func (rs Responder) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	rs.error(w, r, apperr.Validation(msg))
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

// queryLimit parses the limit query parameter, falling back to def.
func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
