package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/choreboard/choreboard/internal/apperr"
	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/logging"
	"github.com/choreboard/choreboard/internal/model"
)

type stubAuthenticator struct {
	tokens map[string]auth.AuthContext
	err    error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (auth.AuthContext, error) {
	if s.err != nil {
		return auth.AuthContext{}, s.err
	}
	ac, ok := s.tokens[token]
	if !ok {
		return auth.AuthContext{}, apperr.Unauthenticated("invalid or expired token")
	}
	return ac, nil
}

var testAuthn = stubAuthenticator{tokens: map[string]auth.AuthContext{
	"parent-token": {UserID: 1, FamilyID: 7, Role: model.RoleParent},
	"child-token":  {UserID: 2, FamilyID: 7, Role: model.RoleChild},
}}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	handler := RequireAuth(testAuthn, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/chores", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if body := decodeEnvelope(t, rec); body["status"] != "fail" {
		t.Errorf("envelope status = %q, want fail", body["status"])
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	handler := RequireAuth(testAuthn, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/chores", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthStoreFailure(t *testing.T) {
	authn := stubAuthenticator{err: errors.New("database is locked")}
	handler := RequireAuth(authn, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer parent-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if body := decodeEnvelope(t, rec); body["status"] != "error" {
		t.Errorf("envelope status = %q, want error", body["status"])
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	var got auth.AuthContext
	handler := RequireAuth(testAuthn, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer child-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != 2 || got.FamilyID != 7 || got.Role != model.RoleChild {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireParent(t *testing.T) {
	handler := RequireAuth(testAuthn, logging.Discard())(RequireParent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		token string
		want  int
	}{
		{"parent-token", http.StatusNoContent},
		{"child-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/api/backups", nil)
		req.Header.Set("Authorization", "Bearer "+tt.token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.token, rec.Code, tt.want)
		}
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"a", "b", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}

func TestRequireAuthQueryTokenOnlyForGET(t *testing.T) {
	handler := RequireAuth(testAuthn, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/uploads/chores/1/a.jpg?access_token=child-token", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/chores?access_token=child-token", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST status = %d, want 401", rec.Code)
	}
}
