package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// EventStream is the durable stream every published event is also appended to.
const EventStream = keyPrefix + "events"

// SignalBus implements domain.SignalBus with Pub/Sub for live fan-out and a
// capped stream for replay.
type SignalBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewSignalBus creates a SignalBus. maxLen caps streams approximately; values
// below one fall back to 10000.
func NewSignalBus(c *Client, maxLen int) *SignalBus {
	if maxLen < 1 {
		maxLen = 10000
	}
	return &SignalBus{rdb: c.Underlying(), maxLen: int64(maxLen)}
}

// Publish sends payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Emit wraps payload in a domain.Event, publishes it on channel and appends it
// to EventStream. The stream append is best effort.
func (sb *SignalBus) Emit(ctx context.Context, channel, eventType string, scope domain.Scope, payload any) error {
	data, err := json.Marshal(domain.Event{
		Type:     eventType,
		Tenant:   scope.Tenant,
		Category: scope.Category,
		Payload:  payload,
		At:       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", eventType, err)
	}
	if err := sb.Publish(ctx, channel, data); err != nil {
		return err
	}
	_ = sb.StreamAppend(ctx, EventStream, data)
	return nil
}

// Subscribe listens on channel (PSubscribe when it contains a glob) until ctx
// ends. The returned channel is closed when the subscription stops.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var ps *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		ps = sb.rdb.PSubscribe(ctx, channel)
	} else {
		ps = sb.rdb.Subscribe(ctx, channel)
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend adds payload to stream, trimming to roughly maxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: sb.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" for the start). An
// empty stream yields no messages and no error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	res, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if strings.Contains(err.Error(), "Invalid stream ID") {
			return nil, fmt.Errorf("redis: stream read %s from %q: %w", stream, lastID, domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out []domain.StreamMessage
	for _, s := range res {
		for _, msg := range s.Messages {
			switch v := msg.Values["payload"].(type) {
			case string:
				out = append(out, domain.StreamMessage{ID: msg.ID, Payload: []byte(v)})
			case []byte:
				out = append(out, domain.StreamMessage{ID: msg.ID, Payload: v})
			}
		}
	}
	return out, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
