package domain

import (
	"context"
	"time"
)

// MarketCache provides fast market lookups for the public read path.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	Invalidate(ctx context.Context, id string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// EventEmitter publishes typed events on the bus.
type EventEmitter interface {
	Emit(ctx context.Context, channel, eventType string, scope Scope, payload any) error
}

// Scope decides which tenants see an event. Tenant pins it to one tenant and
// Category to every tenant whose categories allow it. The zero Scope reaches
// all tenants.
type Scope struct {
	Tenant   string
	Category string
}

// ForTenant scopes an event to a single tenant.
func ForTenant(slug string) Scope { return Scope{Tenant: slug} }

// ForCategory scopes an event to the tenants that list category.
func ForCategory(category string) Scope { return Scope{Category: category} }

// Visible reports whether tenant t should receive an event in scope s.
func (s Scope) Visible(t Tenant) bool {
	if s.Tenant != "" && s.Tenant != t.Slug {
		return false
	}
	if s.Category != "" && !t.AllowsCategory(s.Category) {
		return false
	}
	return true
}

// Bus channels.
const (
	ChannelMarket    = "ch:market"
	ChannelTrade     = "ch:trade"
	ChannelReport    = "ch:report"
	ChannelAttention = "ch:attention"
	ChannelSignal    = "ch:signal"
)

// Event is the JSON envelope published on the bus and relayed to websocket
// clients.
type Event struct {
	Type     string    `json:"type"`
	Tenant   string    `json:"tenant,omitempty"`
	Category string    `json:"category,omitempty"`
	Payload  any       `json:"payload"`
	At       time.Time `json:"at"`
}

// Scope returns the routing scope carried by the envelope.
func (e Event) Scope() Scope { return Scope{Tenant: e.Tenant, Category: e.Category} }
