package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appredis "github.com/nexusesi/backend/pkg/redis"
)

const publishTimeout = 5 * time.Second

// redisPayload is the message published to Redis for cross-instance delivery.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// UserChannel returns the pub/sub channel of a user.
func UserChannel(userID uuid.UUID) string {
	return appredis.Key("user", userID.String())
}

// RedisPubSub implements Publisher and Subscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for user events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishUserEvent publishes an event to the user's channel.
func (r *RedisPubSub) PublishUserEvent(ctx context.Context, userID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, UserChannel(userID), body).Err()
}

// SubscribeUser subscribes to a user's channel and calls handler for each message.
// ctx bounds the handshake; the returned cancel stops the subscription.
func (r *RedisPubSub) SubscribeUser(ctx context.Context, userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	pubsub := r.client.Subscribe(ctx, UserChannel(userID))
	if _, err = pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	subCtx, cancelCtx := context.WithCancel(context.Background())
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("dropping malformed pubsub message", zap.String("channel", msg.Channel))
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
