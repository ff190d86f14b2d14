// Package report drafts the weekly Trader Pulse and Executive Brief documents
// and moves them through the editorial workflow.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

const lookback = 7 * 24 * time.Hour

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarketLine is a market with its movement over the report window.
type MarketLine struct {
	Market domain.Market
	// Baseline is false when no snapshot exists at week start.
	Baseline bool
	StartYes decimal.Decimal
	// ChangePP is the YES price change in percentage points.
	ChangePP decimal.Decimal
}

// Inputs is everything a report is written from.
type Inputs struct {
	Tenant    domain.Tenant
	Kind      domain.ReportKind
	WeekStart time.Time
	AsOf      time.Time
	Markets   []MarketLine
	News      []domain.NewsItem
	Signals   []domain.FragilitySignal
	// ClosingWithin bounds the "closing soon" list.
	ClosingWithin time.Duration
}

// DefaultTitle is the H1 used when a draft has none.
func (in Inputs) DefaultTitle() string {
	return fmt.Sprintf("%s: week of %s", in.Kind.Label(), in.WeekStart.Format("2 Jan 2006"))
}

// Gatherer loads report inputs from the stores.
type Gatherer struct {
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	news      domain.NewsStore
	signals   domain.SignalStore

	maxNews       int
	maxMarkets    int
	closingWithin time.Duration
	now           func() time.Time
}

// GathererOptions bounds the gathered context.
type GathererOptions struct {
	MaxNews       int
	MaxMarkets    int
	ClosingWithin time.Duration
}

// NewGatherer creates a Gatherer.
func NewGatherer(
	markets domain.MarketStore,
	snapshots domain.SnapshotStore,
	news domain.NewsStore,
	signals domain.SignalStore,
	opts GathererOptions,
) *Gatherer {
	if opts.MaxNews <= 0 {
		opts.MaxNews = 40
	}
	if opts.MaxMarkets <= 0 {
		opts.MaxMarkets = 25
	}
	if opts.ClosingWithin <= 0 {
		opts.ClosingWithin = 72 * time.Hour
	}
	return &Gatherer{
		markets:       markets,
		snapshots:     snapshots,
		news:          news,
		signals:       signals,
		maxNews:       opts.MaxNews,
		maxMarkets:    opts.MaxMarkets,
		closingWithin: opts.ClosingWithin,
		now:           time.Now,
	}
}

// Gather collects the tenant's open and recently resolved markets with their
// change since weekStart, the last seven days of news and the fragility
// signals in the tenant's categories.
func (g *Gatherer) Gather(ctx context.Context, tenant domain.Tenant, kind domain.ReportKind, weekStart time.Time) (Inputs, error) {
	now := g.now().UTC()
	in := Inputs{
		Tenant:        tenant,
		Kind:          kind,
		WeekStart:     weekStart,
		AsOf:          now,
		ClosingWithin: g.closingWithin,
	}

	markets, err := g.markets.List(ctx, domain.MarketFilter{
		Categories: tenant.Categories,
		Statuses:   []domain.MarketStatus{domain.MarketStatusOpen, domain.MarketStatusClosed, domain.MarketStatusResolved},
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("report: list markets: %w", err)
	}
	resolvedSince := now.Add(-lookback)
	for _, m := range markets {
		if m.Status == domain.MarketStatusResolved && (m.ResolvedAt == nil || m.ResolvedAt.Before(resolvedSince)) {
			continue
		}
		line := MarketLine{Market: m}
		snap, err := g.snapshots.At(ctx, m.ID, weekStart)
		switch {
		case err == nil:
			line.Baseline = true
			line.StartYes = snap.YesPrice
			line.ChangePP = m.YesPrice.Sub(snap.YesPrice).Mul(decimal.NewFromInt(100))
		case !errors.Is(err, domain.ErrNotFound):
			return Inputs{}, fmt.Errorf("report: snapshot for %s: %w", m.Slug, err)
		}
		in.Markets = append(in.Markets, line)
	}
	// Keep the highest-volume markets when capping.
	sort.SliceStable(in.Markets, func(i, j int) bool {
		return in.Markets[i].Market.Volume.GreaterThan(in.Markets[j].Market.Volume)
	})
	if len(in.Markets) > g.maxMarkets {
		in.Markets = in.Markets[:g.maxMarkets]
	}

	in.News, err = g.news.ListSince(ctx, now.Add(-lookback), tenant.Categories, g.maxNews)
	if err != nil {
		return Inputs{}, fmt.Errorf("report: list news: %w", err)
	}
	in.Signals, err = g.signals.List(ctx, tenant.Categories)
	if err != nil {
		return Inputs{}, fmt.Errorf("report: list signals: %w", err)
	}
	return in, nil
}

// movers returns markets with a baseline ordered by absolute change.
func (in Inputs) movers(limit int) []MarketLine {
	var out []MarketLine
	for _, l := range in.Markets {
		if l.Baseline && !l.ChangePP.IsZero() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ChangePP.Abs(), out[j].ChangePP.Abs()
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return out[i].Market.Slug < out[j].Market.Slug
	})
	return head(out, limit)
}

// volumeLeaders returns markets ordered by volume.
func (in Inputs) volumeLeaders(limit int) []MarketLine {
	out := append([]MarketLine(nil), in.Markets...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Market.Volume, out[j].Market.Volume
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return out[i].Market.Slug < out[j].Market.Slug
	})
	return head(out, limit)
}

// closingSoon returns open markets that close within the window, soonest first.
func (in Inputs) closingSoon() []MarketLine {
	var out []MarketLine
	limit := in.AsOf.Add(in.ClosingWithin)
	for _, l := range in.Markets {
		c := l.Market.ClosesAt
		if l.Market.Status == domain.MarketStatusOpen && c != nil && c.After(in.AsOf) && !c.After(limit) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Market.ClosesAt.Before(*out[j].Market.ClosesAt)
	})
	return out
}

// signalsByLevel returns signals ordered by level, highest first.
func (in Inputs) signalsByLevel() []domain.FragilitySignal {
	out := append([]domain.FragilitySignal(nil), in.Signals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func head[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
