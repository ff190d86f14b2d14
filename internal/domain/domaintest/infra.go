package domaintest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Cache is an in-memory domain.MarketCache.
type Cache struct {
	mu   sync.Mutex
	byID map[string]domain.Market
	Hits int
	// InvalidateErr, when set, is returned by Invalidate after the entry is
	// removed.
	InvalidateErr error
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{byID: make(map[string]domain.Market)} }

func (c *Cache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[m.ID] = m
	return nil
}

func (c *Cache) Get(_ context.Context, id string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[id]
	if !ok {
		return domain.Market{}, notFound("cache " + id)
	}
	c.Hits++
	return m, nil
}

func (c *Cache) GetBySlug(_ context.Context, slug string) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.byID {
		if m.Slug == slug {
			c.Hits++
			return m, nil
		}
	}
	return domain.Market{}, notFound("cache " + slug)
}

func (c *Cache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	return c.InvalidateErr
}

// Locks is an in-process domain.LockManager.
type Locks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocks returns an empty lock manager.
func NewLocks() *Locks { return &Locks{held: make(map[string]bool)} }

func (l *Locks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("fake: lock %s: %w", key, domain.ErrLockHeld)
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Hold marks key as held by someone else.
func (l *Locks) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
}

// Limiter is a domain.RateLimiter that counts calls per key.
type Limiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *Limiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

// Emitted is one event recorded by Bus.
type Emitted struct {
	Channel string
	Type    string
	Scope   domain.Scope
	Payload any
}

// Bus records emitted events and implements domain.EventEmitter.
type Bus struct {
	mu     sync.Mutex
	Events []Emitted
}

func (b *Bus) Emit(_ context.Context, channel, eventType string, scope domain.Scope, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, Emitted{channel, eventType, scope, payload})
	return nil
}

// Types returns the emitted event types in order.
func (b *Bus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.Events))
	for i, e := range b.Events {
		out[i] = e.Type
	}
	return out
}

// Notification is one message recorded by Notifier.
type Notification struct {
	Event, Title, Message string
}

// Notifier records notifications.
type Notifier struct {
	mu   sync.Mutex
	Sent []Notification
}

func (n *Notifier) Notify(_ context.Context, event, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, Notification{event, title, message})
	return nil
}

// Events returns the notified event names in order.
func (n *Notifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.Sent))
	for i, s := range n.Sent {
		out[i] = s.Event
	}
	return out
}

// Blobs is an in-memory blob store.
type Blobs struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	// Err, when set, fails every write.
	Err error
}

// NewBlobs returns an empty blob store.
func NewBlobs() *Blobs {
	return &Blobs{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (b *Blobs) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if b.Err != nil {
		return b.Err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[path] = buf
	b.Types[path] = contentType
	return nil
}

func (b *Blobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return b.Put(ctx, path, data, "application/octet-stream")
}

func (b *Blobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.Objects[path]
	if !ok {
		return nil, notFound("blob " + path)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (b *Blobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.BlobInfo
	for path, buf := range b.Objects {
		if strings.HasPrefix(path, prefix) {
			out = append(out, domain.BlobInfo{Path: path, Size: int64(len(buf)), ContentType: b.Types[path]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
