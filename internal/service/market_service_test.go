package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/algorand"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain/domaintest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	testNow    = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	testTenant = domain.Tenant{Slug: "pulse", Name: "Pulse", Categories: []string{"elections", "energy"}}
)

type stubChain struct {
	states  map[uint64]algorand.AppState
	pending map[string]algorand.PendingTx
}

func (c *stubChain) AppState(_ context.Context, appID uint64) (algorand.AppState, error) {
	st, ok := c.states[appID]
	if !ok {
		return nil, errors.New("algod: 500")
	}
	return st, nil
}

func (c *stubChain) PendingTx(_ context.Context, txID string) (algorand.PendingTx, error) {
	p, ok := c.pending[txID]
	if !ok {
		return algorand.PendingTx{}, domain.ErrNotFound
	}
	return p, nil
}

func pools(yes, no uint64) algorand.AppState {
	return algorand.AppState{
		"yes_pool": {Uint: yes, IsUint: true},
		"no_pool":  {Uint: no, IsUint: true},
	}
}

type marketFixture struct {
	svc       *MarketService
	markets   *domaintest.Markets
	snapshots *domaintest.Snapshots
	cache     *domaintest.Cache
	bus       *domaintest.Bus
	notifier  *domaintest.Notifier
	audit     *domaintest.Audit
}

func newMarketFixture(chain AppReader, ms ...domain.Market) marketFixture {
	f := marketFixture{
		markets:   domaintest.NewMarkets(ms...),
		snapshots: &domaintest.Snapshots{},
		cache:     domaintest.NewCache(),
		bus:       &domaintest.Bus{},
		notifier:  &domaintest.Notifier{},
		audit:     &domaintest.Audit{},
	}
	f.svc = NewMarketService(f.markets, f.snapshots, &domaintest.Trades{}, f.cache, f.bus,
		chain, f.notifier, f.audit, PoolKeys{Yes: "yes_pool", No: "no_pool"}, discardLogger())
	f.svc.now = func() time.Time { return testNow }
	return f
}

func market(id, slug, category string, status domain.MarketStatus) domain.Market {
	return domain.Market{
		ID:       id,
		Slug:     slug,
		Question: "Will " + slug + " happen?",
		Category: category,
		Status:   status,
		YesPrice: decimal.RequireFromString("0.5"),
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Will the ANC win Gauteng?", "will-the-anc-win-gauteng"},
		{"  rand / usd  > 20 ", "rand-usd-20"},
		{"Côte d'Ivoire", "c-te-d-ivoire"},
		{"---", ""},
		{strings.Repeat("ab ", 40), strings.TrimRight(strings.Repeat("ab-", 27)[:80], "-")},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMarketServiceCreate(t *testing.T) {
	closes := testNow.Add(48 * time.Hour)
	past := testNow.Add(-time.Hour)

	tests := []struct {
		name    string
		in      MarketInput
		wantErr error
		errHas  string
	}{
		{
			name: "valid",
			in:   MarketInput{Question: "Will Eskom avoid load shedding in March?", Category: "Energy", ClosesAt: &closes},
		},
		{
			name:    "short question",
			in:      MarketInput{Question: "Rand?", Category: "energy"},
			wantErr: domain.ErrInvalidInput,
			errHas:  "question",
		},
		{
			name:    "category outside tenant",
			in:      MarketInput{Question: "Will Bafana Bafana qualify?", Category: "football"},
			wantErr: domain.ErrInvalidInput,
			errHas:  "football",
		},
		{
			name:    "closes in the past",
			in:      MarketInput{Question: "Will Eskom avoid load shedding?", Category: "energy", ClosesAt: &past},
			wantErr: domain.ErrInvalidInput,
			errHas:  "closes_at",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMarketFixture(&stubChain{})
			m, err := f.svc.Create(context.Background(), testTenant, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.errHas) {
					t.Errorf("err %q does not mention %q", err, tt.errHas)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if m.Slug != "will-eskom-avoid-load-shedding-in-march" {
				t.Errorf("slug = %q", m.Slug)
			}
			if m.Status != domain.MarketStatusDraft || m.Category != "energy" || m.Tenant != "pulse" {
				t.Errorf("market = %+v", m)
			}
			if !m.YesPrice.Equal(decimal.RequireFromString("0.5")) {
				t.Errorf("yes price = %s", m.YesPrice)
			}
			if diff := cmp.Diff([]string{"market_created"}, f.bus.Types()); diff != "" {
				t.Errorf("events (-want +got):\n%s", diff)
			}
			if got := f.bus.Events[0].Scope; got != domain.ForCategory("energy") {
				t.Errorf("event scope = %+v, want energy category", got)
			}
			if diff := cmp.Diff([]string{"market_created"}, f.audit.Events()); diff != "" {
				t.Errorf("audit (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarketServiceCreateDuplicateSlug(t *testing.T) {
	f := newMarketFixture(&stubChain{}, market("m1", "rand-below-18", "energy", domain.MarketStatusOpen))
	_, err := f.svc.Create(context.Background(), testTenant, MarketInput{
		Slug: "Rand below 18", Question: "Will the rand trade below 18?", Category: "energy",
	})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestMarketServiceSetStatus(t *testing.T) {
	withApp := market("m1", "grid", "energy", domain.MarketStatusDraft)
	withApp.AppID = 42
	noApp := market("m2", "poll", "elections", domain.MarketStatusDraft)

	tests := []struct {
		name    string
		id      string
		next    domain.MarketStatus
		wantErr error
	}{
		{"open with app", "m1", domain.MarketStatusOpen, nil},
		{"open without app", "m2", domain.MarketStatusOpen, domain.ErrInvalidInput},
		{"skip to closed", "m1", domain.MarketStatusClosed, domain.ErrInvalidTransition},
		{"resolve needs outcome", "m1", domain.MarketStatusResolved, domain.ErrInvalidInput},
		{"unknown status", "m1", "paused", domain.ErrInvalidInput},
		{"cancel draft", "m2", domain.MarketStatusCancelled, nil},
		{"missing market", "nope", domain.MarketStatusOpen, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMarketFixture(&stubChain{}, withApp, noApp)
			m, err := f.svc.SetStatus(context.Background(), tt.id, tt.next)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if m.Status != tt.next {
				t.Errorf("status = %s, want %s", m.Status, tt.next)
			}
			stored, _ := f.markets.GetByID(context.Background(), tt.id)
			if stored.Status != tt.next {
				t.Errorf("stored status = %s", stored.Status)
			}
		})
	}
}

func TestMarketServiceResolve(t *testing.T) {
	f := newMarketFixture(&stubChain{},
		market("m1", "grid", "energy", domain.MarketStatusClosed),
		market("m2", "poll", "elections", domain.MarketStatusOpen),
	)
	ctx := context.Background()

	if _, err := f.svc.Resolve(ctx, "m2", domain.OutcomeYes); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("resolve open market: err = %v", err)
	}
	if _, err := f.svc.Resolve(ctx, "m1", "maybe"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad outcome: err = %v", err)
	}

	m, err := f.svc.Resolve(ctx, "m1", domain.OutcomeNo)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Status != domain.MarketStatusResolved || m.Outcome != domain.OutcomeNo || m.ResolvedAt == nil {
		t.Errorf("market = %+v", m)
	}
	if diff := cmp.Diff([]string{"market_resolved"}, f.bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"market_resolved"}, f.notifier.Events()); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
	if !strings.Contains(f.notifier.Sent[0].Message, "NO") {
		t.Errorf("message = %q", f.notifier.Sent[0].Message)
	}

	if _, err := f.svc.Update(ctx, testTenant, "m1", MarketInput{Question: "Will the grid hold up?", Category: "energy"}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("update resolved: err = %v", err)
	}
}

func TestMarketServiceGetForTenant(t *testing.T) {
	f := newMarketFixture(&stubChain{},
		market("m1", "grid", "energy", domain.MarketStatusOpen),
		market("m2", "afcon", "football", domain.MarketStatusOpen),
	)
	ctx := context.Background()

	m, err := f.svc.GetForTenant(ctx, testTenant, "grid")
	if err != nil || m.ID != "m1" {
		t.Fatalf("GetForTenant(grid) = %v, %v", m.ID, err)
	}
	if _, err := f.cache.Get(ctx, "m1"); err != nil {
		t.Errorf("market not backfilled into cache: %v", err)
	}
	if _, err := f.svc.GetForTenant(ctx, testTenant, "afcon"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign category: err = %v", err)
	}
}

func TestMarketServiceList(t *testing.T) {
	f := newMarketFixture(&stubChain{},
		market("m1", "grid", "energy", domain.MarketStatusOpen),
		market("m2", "afcon", "football", domain.MarketStatusOpen),
		market("m3", "poll", "elections", domain.MarketStatusDraft),
		market("m4", "tariff", "energy", domain.MarketStatusResolved),
	)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter domain.MarketFilter
		want   []string
	}{
		{"defaults", domain.MarketFilter{}, []string{"grid", "tariff"}},
		{"foreign category", domain.MarketFilter{Categories: []string{"football"}}, []string{}},
		{"drafts on request", domain.MarketFilter{Statuses: []domain.MarketStatus{domain.MarketStatusDraft}}, []string{"poll"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, total, err := f.svc.List(ctx, testTenant, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			got := make([]string, 0, len(ms))
			for _, m := range ms {
				got = append(got, m.Slug)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("slugs (-want +got):\n%s", diff)
			}
			if total != int64(len(tt.want)) {
				t.Errorf("total = %d", total)
			}
		})
	}
}

func TestMarketServiceSyncChain(t *testing.T) {
	grid := market("m1", "grid", "energy", domain.MarketStatusOpen)
	grid.AppID = 1
	poll := market("m2", "poll", "elections", domain.MarketStatusOpen)
	poll.AppID = 2
	broken := market("m3", "broken", "energy", domain.MarketStatusOpen)
	broken.AppID = 3
	unbound := market("m4", "unbound", "energy", domain.MarketStatusOpen)

	chain := &stubChain{states: map[uint64]algorand.AppState{
		1: pools(3_000_000, 1_000_000),
		2: pools(0, 0),
	}}
	f := newMarketFixture(chain, grid, poll, broken, unbound)

	res, err := f.svc.SyncChain(context.Background())
	if err != nil {
		t.Fatalf("SyncChain: %v", err)
	}
	if diff := cmp.Diff(SyncResult{Synced: 2, Failed: 1}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	stored, _ := f.markets.GetByID(context.Background(), "m1")
	if !stored.YesPrice.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("yes price = %s, want 0.75", stored.YesPrice)
	}
	if !stored.YesPool.Equal(decimal.NewFromInt(3)) {
		t.Errorf("yes pool = %s, want 3", stored.YesPool)
	}

	// Only the market whose price moved is announced.
	if diff := cmp.Diff([]string{"market_price"}, f.bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if len(f.snapshots.Items) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(f.snapshots.Items))
	}
	for _, s := range f.snapshots.Items {
		if !s.TakenAt.Equal(testNow) {
			t.Errorf("snapshot %s taken at %v", s.MarketID, s.TakenAt)
		}
	}
}

func TestMarketServiceSyncChainPoolsOnly(t *testing.T) {
	grid := market("m1", "grid", "energy", domain.MarketStatusOpen)
	grid.AppID = 1
	grid.YesPool = decimal.NewFromInt(1)
	grid.NoPool = decimal.NewFromInt(1)

	chain := &stubChain{states: map[uint64]algorand.AppState{1: pools(2_000_000, 2_000_000)}}
	f := newMarketFixture(chain, grid)
	ctx := context.Background()
	if err := f.cache.Set(ctx, grid); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.SyncChain(ctx); err != nil {
		t.Fatalf("SyncChain: %v", err)
	}
	if _, err := f.cache.Get(ctx, "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cached market survived a pool change: err = %v", err)
	}
	if got := f.bus.Types(); len(got) != 0 {
		t.Errorf("events = %v, want none for an unchanged price", got)
	}
	m, err := f.svc.GetMarket(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if !m.YesPool.Equal(decimal.NewFromInt(2)) || !m.NoPool.Equal(decimal.NewFromInt(2)) {
		t.Errorf("pools = %s/%s, want 2/2", m.YesPool, m.NoPool)
	}
}

func TestMarketServiceUpdateUsesOwningTenant(t *testing.T) {
	sport := domain.Tenant{Slug: "sport", Categories: []string{"football"}}
	afcon := market("m1", "afcon", "football", domain.MarketStatusDraft)
	afcon.Tenant = sport.Slug

	tests := []struct {
		name     string
		category string
		wantErr  error
	}{
		{"owner category", "football", nil},
		{"request tenant category", "energy", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMarketFixture(&stubChain{}, afcon)
			f.svc.WithTenants([]domain.Tenant{testTenant, sport})
			_, err := f.svc.Update(context.Background(), testTenant, "m1",
				MarketInput{Question: "Will Bafana Bafana win AFCON?", Category: tt.category})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
