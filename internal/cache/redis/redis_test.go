package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Client{rdb: rdb}, mr
}

func TestLockExclusive(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "report:pulse", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := lm.Acquire(ctx, "report:pulse", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second Acquire: err = %v, want ErrLockHeld", err)
	}
	if _, err := lm.Acquire(ctx, "report:sport", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "lock:report:pulse"); ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}

	release()
	release()
	again, err := lm.Acquire(ctx, "report:pulse", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestLockReleaseOnlyByOwner(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()
	key := keyPrefix + "lock:ingest"

	stale, err := lm.Acquire(ctx, "ingest", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	mr.FastForward(2 * time.Second)

	current, err := lm.Acquire(ctx, "ingest", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	owner, err := mr.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// The expired holder must not delete the new owner's lock.
	stale()
	if got, err := mr.Get(key); err != nil || got != owner {
		t.Fatalf("lock after stale release = %q, %v; want %q", got, err, owner)
	}
	if _, err := lm.Acquire(ctx, "ingest", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("Acquire while held: err = %v", err)
	}

	current()
	if mr.Exists(key) {
		t.Error("owner release left the key behind")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	allow := func(key string) bool {
		t.Helper()
		ok, err := rl.Allow(ctx, key, 2, time.Minute)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		return ok
	}

	if !allow("a") || !allow("a") {
		t.Fatal("first two requests should pass")
	}
	if allow("a") {
		t.Fatal("third request inside the window should be denied")
	}
	if !allow("b") {
		t.Error("keys should not share a budget")
	}

	// Denied calls do not extend the window.
	now = now.Add(30 * time.Second)
	if allow("a") {
		t.Error("still inside the window")
	}
	now = now.Add(31 * time.Second)
	if !allow("a") {
		t.Error("request after the window should pass")
	}

	if ok, err := rl.Allow(ctx, "a", 0, time.Minute); err != nil || !ok {
		t.Errorf("zero limit: ok = %v, err = %v", ok, err)
	}
}

func TestSignalBusEmitAndReplay(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c, 100)
	ctx := context.Background()

	if err := bus.Emit(ctx, domain.ChannelMarket, "market_created", domain.ForCategory("football"), map[string]string{"slug": "afcon"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	msgs, err := bus.StreamRead(ctx, EventStream, "0", 10)
	if err != nil {
		t.Fatalf("StreamRead: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	var ev domain.Event
	if err := json.Unmarshal(msgs[0].Payload, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != "market_created" || ev.Category != "football" || ev.Tenant != "" {
		t.Errorf("event = %+v", ev)
	}

	more, err := bus.StreamRead(ctx, EventStream, msgs[0].ID, 10)
	if err != nil || len(more) != 0 {
		t.Errorf("read after last id = %d, %v", len(more), err)
	}
	if _, err := bus.StreamRead(ctx, EventStream, "not-an-id", 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad id: err = %v, want ErrInvalidInput", err)
	}
}
