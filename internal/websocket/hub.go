package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a live update pushed to connected clients. Type is
// "<entity>_<action>", for example chore_updated or notification_created.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// room holds the connections of one family.
type room map[*Client]struct{}

// Hub routes messages to the connections of a family or of a single user.
// Clients are grouped by family so a broadcast only walks that family.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]room
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]room),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.familyID]
	if !ok {
		r = make(room)
		h.rooms[c.familyID] = r
	}
	r[c] = struct{}{}
	h.logger.Debug("client connected", "family_id", c.familyID, "user_id", c.userID, "family_clients", len(r))
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[c.familyID]
	if !ok {
		return
	}
	if _, ok := r[c]; !ok {
		return
	}
	delete(r, c)
	close(c.send)
	if len(r) == 0 {
		delete(h.rooms, c.familyID)
	}
}

// BroadcastFamily sends msg to every connection of familyID.
func (h *Hub) BroadcastFamily(familyID int64, msg Message) {
	h.publish(familyID, 0, msg)
}

// SendUser sends msg to every connection of userID within familyID.
func (h *Hub) SendUser(familyID, userID int64, msg Message) {
	h.publish(familyID, userID, msg)
}

// publish delivers to the family room, narrowed to userID when it is set.
// A client whose buffer is full misses the message rather than stalling
// the sender.
func (h *Hub) publish(familyID, userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal websocket message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.rooms[familyID] {
		if userID != 0 && c.userID != userID {
			continue
		}
		if !c.enqueue(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("websocket clients lagging", "family_id", familyID, "type", msg.Type, "dropped", dropped)
	}
}

// ClientCount returns the number of connected clients across all families.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, r := range h.rooms {
		n += len(r)
	}
	return n
}

// FamilyCount returns the number of connections open for familyID.
func (h *Hub) FamilyCount(familyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[familyID])
}
