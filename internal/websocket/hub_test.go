package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ws "github.com/coder/websocket"

	"github.com/choreboard/choreboard/internal/auth"
	"github.com/choreboard/choreboard/internal/logging"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID, userID int64) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
		userID:   userID,
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	default:
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1, 1)
	c2 := mockClient(hub, 1, 2)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	// Should not panic
	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastFamilyIsScoped(t *testing.T) {
	hub := NewHub(slog.Default())

	mine1 := mockClient(hub, 1, 10)
	mine2 := mockClient(hub, 1, 11)
	other := mockClient(hub, 2, 20)
	for _, c := range []*Client{mine1, mine2, other} {
		hub.Register(c)
	}

	hub.BroadcastFamily(1, NewMessage("chore", "updated", 42, map[string]any{"status": "completed"}))

	for _, c := range []*Client{mine1, mine2} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatal("family client did not receive message")
		}
		if got.Type != "chore_updated" || got.ID != 42 {
			t.Errorf("got %+v, want chore_updated id 42", got)
		}
		if got.Extra["status"] != "completed" {
			t.Errorf("extra status = %v, want completed", got.Extra["status"])
		}
	}
	if _, ok := receive(t, other); ok {
		t.Error("client in another family received the message")
	}
}

func TestSendUser(t *testing.T) {
	hub := NewHub(slog.Default())

	target := mockClient(hub, 1, 10)
	sibling := mockClient(hub, 1, 11)
	hub.Register(target)
	hub.Register(sibling)

	hub.SendUser(1, 10, NewMessage("notification", "created", 7, nil))

	if _, ok := receive(t, target); !ok {
		t.Error("target user did not receive message")
	}
	if _, ok := receive(t, sibling); ok {
		t.Error("other user received a direct message")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize+5; i++ {
		hub.BroadcastFamily(1, NewMessage("chore", "created", int64(i), nil))
	}
	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (auth.AuthContext, error) {
	if token != "good" {
		return auth.AuthContext{}, errors.New("bad token")
	}
	return auth.AuthContext{UserID: 5, FamilyID: 3}, nil
}

func TestHandleWebSocketRequiresToken(t *testing.T) {
	hub := NewHub(logging.Discard())
	h := HandleWebSocket(hub, stubAuth{}, nil, logging.Discard())

	for _, target := range []string{"/ws", "/ws?access_token=bad"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", target, rec.Code)
		}
	}
}

func TestHandleWebSocketDeliversFamilyMessages(t *testing.T) {
	hub := NewHub(logging.Discard())
	srv := httptest.NewServer(HandleWebSocket(hub, stubAuth{}, nil, logging.Discard()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, srv.URL+"?access_token=good", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	}

	if hello := read(); hello.Type != "session_connected" || hello.ID != 5 {
		t.Errorf("greeting = %+v, want session_connected for user 5", hello)
	}

	hub.BroadcastFamily(4, NewMessage("chore", "created", 8, nil))
	hub.BroadcastFamily(3, NewMessage("chore", "created", 9, nil))

	if got := read(); got.Type != "chore_created" || got.ID != 9 {
		t.Errorf("got %+v, want chore_created id 9", got)
	}

	conn.Close(ws.StatusNormalClosure, "")
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count after close = %d, want 0", hub.ClientCount())
	}
}

func TestFamilyRoomsAreTracked(t *testing.T) {
	hub := NewHub(logging.Discard())

	a := mockClient(hub, 1, 10)
	b := mockClient(hub, 1, 11)
	c := mockClient(hub, 2, 20)
	for _, cl := range []*Client{a, b, c} {
		hub.Register(cl)
	}
	if got := hub.FamilyCount(1); got != 2 {
		t.Errorf("family 1 count = %d, want 2", got)
	}

	hub.Unregister(a)
	hub.Unregister(b)
	if got := hub.FamilyCount(1); got != 0 {
		t.Errorf("family 1 count = %d, want 0", got)
	}
	if _, ok := hub.rooms[1]; ok {
		t.Error("empty family room was not removed")
	}
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("total clients = %d, want 1", got)
	}

	// Broadcasting to a family with no connections is a no-op.
	hub.BroadcastFamily(1, NewMessage("chore", "deleted", 1, nil))
}
