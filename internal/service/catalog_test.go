package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain/domaintest"
)

func TestSignalServiceUpsert(t *testing.T) {
	existing := domain.FragilitySignal{ID: "sig-1", Slug: "grid-stability", Name: "Grid", Category: "energy", Level: 40, Trend: domain.TrendStable}
	store := domaintest.NewSignals(existing)
	bus := &domaintest.Bus{}
	svc := NewSignalService(store, bus, discardLogger())
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	got, err := svc.Upsert(ctx, "Grid Stability", SignalInput{Name: "Grid stability", Category: "Energy", Level: 140, Trend: domain.TrendRising})
	if err != nil {
		t.Fatalf("Upsert existing: %v", err)
	}
	if got.ID != "sig-1" || got.Level != 100 || got.Category != "energy" || !got.UpdatedAt.Equal(testNow) {
		t.Errorf("signal = %+v", got)
	}

	fresh, err := svc.Upsert(ctx, "rand-volatility", SignalInput{Name: "Rand volatility", Category: "currency", Level: -5})
	if err != nil {
		t.Fatalf("Upsert new: %v", err)
	}
	if fresh.ID == "" || fresh.Level != 0 || fresh.Trend != domain.TrendStable {
		t.Errorf("new signal = %+v", fresh)
	}

	if _, err := svc.Upsert(ctx, "x", SignalInput{Name: "X", Category: "energy", Trend: "sideways"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("bad trend: err = %v", err)
	}
	if _, err := svc.Upsert(ctx, "", SignalInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty input: err = %v", err)
	}

	if diff := cmp.Diff([]string{"signal_updated", "signal_updated"}, bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestSignalServiceListAndDelete(t *testing.T) {
	store := domaintest.NewSignals(
		domain.FragilitySignal{ID: "1", Slug: "grid", Category: "energy"},
		domain.FragilitySignal{ID: "2", Slug: "coalition", Category: "elections"},
		domain.FragilitySignal{ID: "3", Slug: "injuries", Category: "football"},
	)
	bus := &domaintest.Bus{}
	svc := NewSignalService(store, bus, discardLogger())
	ctx := context.Background()

	slugs := func(sigs []domain.FragilitySignal) []string {
		out := make([]string, 0, len(sigs))
		for _, s := range sigs {
			out = append(out, s.Slug)
		}
		return out
	}

	all, err := svc.List(ctx, testTenant, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"coalition", "grid"}, slugs(all)); diff != "" {
		t.Errorf("tenant signals (-want +got):\n%s", diff)
	}
	foreign, _ := svc.List(ctx, testTenant, "football")
	if len(foreign) != 0 {
		t.Errorf("foreign category returned %v", slugs(foreign))
	}

	if err := svc.Delete(ctx, "grid"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "grid"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete: err = %v", err)
	}
	if diff := cmp.Diff([]string{"signal_deleted"}, bus.Types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestSubscriberServiceSubscribe(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		want    string
		wantErr error
	}{
		{"plain", "Thandi@Example.co.za", "thandi@example.co.za", nil},
		{"padded", "  kofi@mail.gh ", "kofi@mail.gh", nil},
		{"display name", "Kofi <kofi@mail.gh>", "", domain.ErrInvalidInput},
		{"no at", "kofi.mail.gh", "", domain.ErrInvalidInput},
		{"no dot in domain", "kofi@localhost", "", domain.ErrInvalidInput},
		{"empty", "", "", domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &domaintest.Subscribers{}
			svc := NewSubscriberService(store)
			sub, err := svc.Subscribe(context.Background(), testTenant, tt.email, "footer")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if sub.Email != tt.want || sub.Tenant != "pulse" || sub.Source != "footer" {
				t.Errorf("subscriber = %+v", sub)
			}
		})
	}
}

func TestSubscriberServiceDuplicate(t *testing.T) {
	store := &domaintest.Subscribers{}
	svc := NewSubscriberService(store)
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, testTenant, "ama@example.com", ""); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := svc.Subscribe(ctx, testTenant, "AMA@example.com", ""); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate: err = %v", err)
	}
	if n, _ := svc.Count(ctx, "pulse"); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestLayoutUniverse(t *testing.T) {
	mk := func(slug, cat, price, volume string) domain.Market {
		return domain.Market{
			ID: slug, Slug: slug, Category: cat, Status: domain.MarketStatusOpen,
			YesPrice: decimal.RequireFromString(price), Volume: decimal.RequireFromString(volume),
		}
	}
	markets := []domain.Market{
		mk("grid", "energy", "0.5", "0"),
		mk("poll", "elections", "0.9", "999"),
		mk("tariff", "energy", "0.1", "9"),
	}

	u := LayoutUniverse(markets)
	again := LayoutUniverse([]domain.Market{markets[2], markets[0], markets[1]})
	if diff := cmp.Diff(u, again); diff != "" {
		t.Fatalf("layout depends on input order (-first +second):\n%s", diff)
	}

	wantClusters := []Cluster{
		{Category: "elections", Angle: 0, Count: 1},
		{Category: "energy", Angle: round4(math.Pi), Count: 2},
	}
	if diff := cmp.Diff(wantClusters, u.Clusters); diff != "" {
		t.Errorf("clusters (-want +got):\n%s", diff)
	}

	bySlug := make(map[string]Star)
	for _, s := range u.Stars {
		bySlug[s.Slug] = s
		if r := math.Hypot(s.X, s.Y); r < 0.24 || r > 0.96 {
			t.Errorf("%s radius %.3f outside the disc band", s.Slug, r)
		}
	}
	if got := bySlug["grid"]; got.Size != 1 || got.Brightness != 0.3 {
		t.Errorf("grid star = %+v", got)
	}
	if got := bySlug["poll"]; got.Size != 4 || got.Brightness != 0.86 {
		t.Errorf("poll star = %+v", got)
	}
	if got := bySlug["tariff"]; got.Size != 2 {
		t.Errorf("tariff size = %v, want 2", got.Size)
	}
}

func TestUniverseServiceLayoutFiltersTenant(t *testing.T) {
	svc := NewUniverseService(domaintest.NewMarkets(
		market("m1", "grid", "energy", domain.MarketStatusOpen),
		market("m2", "afcon", "football", domain.MarketStatusOpen),
		market("m3", "draft", "energy", domain.MarketStatusDraft),
	))
	u, err := svc.Layout(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(u.Stars) != 1 || u.Stars[0].Slug != "grid" {
		t.Errorf("stars = %+v", u.Stars)
	}
}
