package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusesi/backend/internal/middleware"
	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newWsServer(t *testing.T, hub *Hub, userID uuid.UUID) *httptest.Server {
	t.Helper()
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(middleware.ContextActor, policy.Actor{UserID: userID, Role: models.RoleSeedbedLeader})
		c.Next()
	}, ServeWs(hub, NewUpgrader(nil), nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversToConnectedUser(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	userID := uuid.New()
	conn := dial(t, newWsServer(t, hub, userID))

	require.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishToUser(context.Background(), userID, "notification", map[string]string{"title": "Task assigned"}))
	hub.SendToUser(uuid.New(), "notification", map[string]string{"title": "not for you"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "notification", msg.Event)

	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "Task assigned", data["title"])
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	userID := uuid.New()
	conn := dial(t, newWsServer(t, hub, userID))
	require.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingPubSub struct {
	mu        sync.Mutex
	published []string
	handlers  map[uuid.UUID]func(string, []byte)
}

func (r *recordingPubSub) PublishUserEvent(_ context.Context, userID uuid.UUID, event string, payload []byte) error {
	r.mu.Lock()
	r.published = append(r.published, event)
	h := r.handlers[userID]
	r.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (r *recordingPubSub) SubscribeUser(_ context.Context, userID uuid.UUID, handler func(string, []byte)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[userID] = handler
	return func() {
		r.mu.Lock()
		delete(r.handlers, userID)
		r.mu.Unlock()
	}, nil
}

func TestHub_PublishesThroughBroker(t *testing.T) {
	ps := &recordingPubSub{handlers: map[uuid.UUID]func(string, []byte){}}
	hub := NewHub(nil, ps, ps)
	userID := uuid.New()
	conn := dial(t, newWsServer(t, hub, userID))
	require.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishToUser(context.Background(), userID, "alert", map[string]string{"type": "Critical"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert", msg.Event)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Equal(t, []string{"alert"}, ps.published)
}

func newTestClient(hub *Hub, userID uuid.UUID) *Client {
	return &Client{ID: uuid.New().String(), UserID: userID, hub: hub, send: make(chan WSMessage, 8)}
}

// gatedSubscriber blocks every handshake until release is closed.
type gatedSubscriber struct {
	started  chan struct{}
	release  chan struct{}
	mu       sync.Mutex
	calls    int
	failures int
	stopped  int
}

func (g *gatedSubscriber) SubscribeUser(ctx context.Context, _ uuid.UUID, _ func(string, []byte)) (func(), error) {
	g.mu.Lock()
	g.calls++
	fail := g.calls <= g.failures
	g.mu.Unlock()
	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("redis: connection refused")
	}
	return func() {
		g.mu.Lock()
		g.stopped++
		g.mu.Unlock()
	}, nil
}

func TestHub_PendingSubscribeDoesNotBlockOtherUsers(t *testing.T) {
	sub := &gatedSubscriber{started: make(chan struct{}, 1), release: make(chan struct{})}
	hub := NewHub(nil, nil, sub)
	slowUser, other := uuid.New(), uuid.New()

	registered := make(chan struct{})
	go func() {
		hub.Register(newTestClient(hub, slowUser))
		close(registered)
	}()
	<-sub.started

	otherClient := newTestClient(hub, other)
	hub.mu.Lock()
	hub.users[other] = map[string]*Client{otherClient.ID: otherClient}
	hub.subs[other] = func() {}
	hub.mu.Unlock()

	delivered := make(chan struct{})
	go func() {
		hub.SendToUser(other, "notification", map[string]string{"title": "Task assigned"})
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("SendToUser waited on another user's subscribe")
	}
	assert.Len(t, otherClient.send, 1)
	assert.Equal(t, 1, hub.Connections(slowUser))
	assert.False(t, hub.Subscribed(slowUser))

	close(sub.release)
	<-registered
	assert.True(t, hub.Subscribed(slowUser))
}

func TestHub_FailedSubscribeRetriedOnNextConnection(t *testing.T) {
	sub := &gatedSubscriber{failures: 1}
	hub := NewHub(nil, nil, sub)
	userID := uuid.New()

	hub.Register(newTestClient(hub, userID))
	assert.Equal(t, 1, hub.Connections(userID))
	assert.False(t, hub.Subscribed(userID))

	hub.Register(newTestClient(hub, userID))
	assert.Equal(t, 2, hub.Connections(userID))
	assert.True(t, hub.Subscribed(userID))

	hub.Register(newTestClient(hub, userID))
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, 2, sub.calls)
}

func TestHub_SubscriptionDroppedWhenUserLeavesDuringHandshake(t *testing.T) {
	sub := &gatedSubscriber{started: make(chan struct{}, 1), release: make(chan struct{})}
	hub := NewHub(nil, nil, sub)
	userID := uuid.New()
	c := newTestClient(hub, userID)

	registered := make(chan struct{})
	go func() {
		hub.Register(c)
		close(registered)
	}()
	<-sub.started
	hub.Unregister(c)
	close(sub.release)
	<-registered

	assert.False(t, hub.Subscribed(userID))
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, 1, sub.stopped)
}

func TestUserChannel(t *testing.T) {
	id := uuid.MustParse("7d0f6c2e-8a51-4b1c-9d0e-3f2a1b4c5d6e")
	assert.Equal(t, "nexusesi:user:7d0f6c2e-8a51-4b1c-9d0e-3f2a1b4c5d6e", UserChannel(id))
}
