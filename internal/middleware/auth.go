package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
)

// Authenticator resolves a bearer token to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.AuthContext, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireAuth validates the bearer token and populates AuthContext. GET
// requests may carry the token in access_token instead, since image tags
// cannot set headers.
func RequireAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" && r.Method == http.MethodGet {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				writeFail(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			ac, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				kind := apperr.KindOf(err)
				if kind != apperr.KindUnauthenticated {
					logger.Error("authenticate request", "error", err)
					writeError(w, http.StatusInternalServerError, "authentication failed")
					return
				}
				writeFail(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects callers that are not parents of their family.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeFail(w, http.StatusForbidden, "parent role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, "fail", msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, "error", msg)
}

func writeEnvelope(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": kind, "message": msg})
}
