package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

type fakeBus struct {
	chans map[string]chan []byte
}

func newFakeBus() *fakeBus {
	b := &fakeBus{chans: make(map[string]chan []byte)}
	for _, ch := range Channels {
		b.chans[ch] = make(chan []byte, 16)
	}
	return b
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.chans[channel], nil
}

func (b *fakeBus) emit(t *testing.T, channel, eventType string, scope domain.Scope) {
	t.Helper()
	data, err := json.Marshal(domain.Event{
		Type: eventType, Tenant: scope.Tenant, Category: scope.Category,
		Payload: map[string]string{"k": "v"}, At: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	b.chans[channel] <- data
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame kind = %d, want text", kind)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func TestHubRelaysTenantEvents(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "full"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(domain.WithTenant(r.Context(), domain.Tenant{Slug: "pulse", Categories: []string{"football"}}))
		hub.HandleWS(w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	status := readFrame(t, conn)
	if status["type"] != "status" {
		t.Fatalf("first frame = %v, want status", status)
	}
	payload := status["payload"].(map[string]any)
	if payload["tenant"] != "pulse" || payload["mode"] != "full" {
		t.Errorf("status payload = %v", payload)
	}

	bus.emit(t, domain.ChannelReport, "report_published", domain.ForTenant("other"))
	bus.emit(t, domain.ChannelMarket, "market_created", domain.ForCategory("elections"))
	bus.emit(t, domain.ChannelTrade, "trade_recorded", domain.ForCategory("football"))
	bus.emit(t, domain.ChannelMarket, "market_price", domain.ForCategory("football"))
	bus.emit(t, domain.ChannelReport, "report_published", domain.ForTenant("pulse"))
	bus.emit(t, domain.ChannelSignal, "signal_updated", domain.Scope{})

	var got []string
	for range 3 {
		f := readFrame(t, conn)
		got = append(got, f["channel"].(string)+" "+f["type"].(string))
	}
	// Channels are relayed by separate goroutines, so order is not fixed.
	sort.Strings(got)
	want := []string{"ch:market market_price", "ch:report report_published", "ch:signal signal_updated"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames (-want +got):\n%s", diff)
	}
}

func TestClientSubscriptions(t *testing.T) {
	c := &client{
		tenant: domain.Tenant{Slug: "pulse", Categories: []string{"elections"}},
		subs:   map[string]bool{domain.ChannelMarket: true},
	}

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelTrade, "ch:nonsense"}})
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelMarket}})

	tests := []struct {
		channel string
		scope   domain.Scope
		want    bool
	}{
		{domain.ChannelTrade, domain.ForTenant("pulse"), true},
		{domain.ChannelTrade, domain.Scope{}, true},
		{domain.ChannelTrade, domain.ForTenant("other"), false},
		{domain.ChannelTrade, domain.ForCategory("elections"), true},
		{domain.ChannelTrade, domain.ForCategory("football"), false},
		{domain.ChannelMarket, domain.ForTenant("pulse"), false},
		{"ch:nonsense", domain.Scope{}, false},
	}
	for _, tt := range tests {
		if got := c.wants(tt.channel, tt.scope); got != tt.want {
			t.Errorf("wants(%q, %+v) = %v, want %v", tt.channel, tt.scope, got, tt.want)
		}
	}
}

// A tenant listing a category over REST gets its market events regardless of
// which tenant created the market.
func TestCategoryScopeAcrossTenants(t *testing.T) {
	creator := domain.Tenant{Slug: "augurion", Categories: []string{"elections", "football"}}
	soccer := domain.Tenant{Slug: "soccer-laduma", Categories: []string{"football"}}
	m := domain.Market{Tenant: creator.Slug, Category: "football"}

	c := &client{tenant: soccer, subs: map[string]bool{domain.ChannelMarket: true}}
	if !soccer.AllowsCategory(m.Category) {
		t.Fatal("soccer tenant should list football markets")
	}
	if !c.wants(domain.ChannelMarket, domain.ForCategory(m.Category)) {
		t.Error("soccer client should receive football market events")
	}
	if c.wants(domain.ChannelMarket, domain.ForCategory("elections")) {
		t.Error("soccer client should not receive election market events")
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://augurion.africa"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	if !check(req("https://augurion.africa")) || !check(req("")) {
		t.Error("allowed origin rejected")
	}
	if check(req("https://evil.example")) {
		t.Error("foreign origin accepted")
	}
	if !originChecker(nil)(req("https://anything.example")) {
		t.Error("empty allow-list should accept all")
	}
}
