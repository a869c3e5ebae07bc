package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event names published by the verification workflow.
const (
	EventPaymentSubmitted    = "payment.submitted"
	EventPaymentVerified     = "payment.verified"
	EventPaymentRejected     = "payment.rejected"
	EventSubscriptionUpdated = "subscription.updated"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// Publisher emits events to one channel.
type Publisher interface {
	Emit(ctx context.Context, name string, payload interface{}) error
}

// Fanout emits to every publisher and joins their errors.
type Fanout []Publisher

// Emit implements Publisher.
func (f Fanout) Emit(ctx context.Context, name string, payload interface{}) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Emit(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisPublisher publishes events on a Redis pub/sub channel so other
// instances can relay them to their own websocket clients.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for channel.
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Emit implements Publisher.
func (p *RedisPublisher) Emit(ctx context.Context, name string, payload interface{}) error {
	data, err := json.Marshal(Event{Name: name, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", name, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", name, err)
	}
	return nil
}
