package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"

	"github.com/choreboard/choreboard/internal/auth"
)

// Authenticator resolves a bearer token to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.AuthContext, error)
}

// HandleWebSocket upgrades authenticated requests and runs them as hub
// clients. Browsers cannot set headers on a WebSocket handshake, so the token
// may also arrive in the access_token query parameter.
func HandleWebSocket(hub *Hub, authn Authenticator, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if h := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		ac, err := authn.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, ac.FamilyID, ac.UserID)
		client.Run(r.Context())
	}
}
