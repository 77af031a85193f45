package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// subscribeTimeout bounds the Redis SUBSCRIBE handshake of a user's first connection.
const subscribeTimeout = 5 * time.Second

// Hub maintains user_id -> set of connections. A user may have several tabs open.
// With Redis configured every event goes through pub/sub so all instances deliver it once.
type Hub struct {
	users       map[uuid.UUID]map[string]*Client
	subs        map[uuid.UUID]func() // cancel Redis subscription per user
	subscribing map[uuid.UUID]bool
	mu          sync.RWMutex
	logger      *zap.Logger
	pub         Publisher
	sub         Subscriber
}

// Publisher publishes user events for cross-instance delivery.
type Publisher interface {
	PublishUserEvent(ctx context.Context, userID uuid.UUID, event string, payload []byte) error
}

// Subscriber subscribes to a user's channel and invokes handler for incoming events.
// ctx bounds the subscribe handshake only; the subscription lives until cancel is called.
type Subscriber interface {
	SubscribeUser(ctx context.Context, userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for single-instance use.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		users:       make(map[uuid.UUID]map[string]*Client),
		subs:        make(map[uuid.UUID]func()),
		subscribing: make(map[uuid.UUID]bool),
		logger:      logger,
		pub:         pub,
		sub:         sub,
	}
}

// Register adds a client. The user's Redis subscription is started outside the lock when
// none is active, so a failed subscribe is retried by the next connection of that user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.users[c.UserID] == nil {
		h.users[c.UserID] = make(map[string]*Client)
	}
	h.users[c.UserID][c.ID] = c
	needSub := h.sub != nil && h.subs[c.UserID] == nil && !h.subscribing[c.UserID]
	if needSub {
		h.subscribing[c.UserID] = true
	}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))

	if needSub {
		h.subscribe(c.UserID)
	}
}

func (h *Hub) subscribe(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	stop, err := h.sub.SubscribeUser(ctx, userID, func(event string, payload []byte) {
		h.SendToUser(userID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.subscribing, userID)
	switch {
	case err != nil:
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	case len(h.users[userID]) == 0:
		// every connection left while the handshake was in flight
		h.mu.Unlock()
		stop()
		return
	}
	h.subs[userID] = stop
	h.mu.Unlock()
}

// Unregister removes a client. Cancels the Redis subscription when the user's last connection leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.users[c.UserID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.users, c.UserID)
			if cancel, ok := h.subs[c.UserID]; ok {
				cancel()
				delete(h.subs, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// Subscribed reports whether the user's Redis subscription is active on this instance.
func (h *Hub) Subscribed(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[userID] != nil
}

// SendToUser delivers a message to the user's local connections.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishToUser delivers an event to the user on every instance. Without Redis it delivers locally.
func (h *Hub) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	if h.pub == nil {
		h.SendToUser(userID, event, payload)
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.pub.PublishUserEvent(ctx, userID, event, data)
}

// Connections returns the number of open connections of a user.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
