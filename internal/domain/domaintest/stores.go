// Package domaintest provides in-memory fakes of the domain interfaces for
// tests.
package domaintest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

func notFound(what string) error {
	return fmt.Errorf("fake: %s: %w", what, domain.ErrNotFound)
}

// Markets is an in-memory domain.MarketStore.
type Markets struct {
	mu   sync.Mutex
	byID map[string]domain.Market
	// Err, when set, is returned by every call.
	Err error
}

// NewMarkets returns a store seeded with ms.
func NewMarkets(ms ...domain.Market) *Markets {
	s := &Markets{byID: make(map[string]domain.Market)}
	for _, m := range ms {
		s.byID[m.ID] = m
	}
	return s
}

func (s *Markets) Create(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, o := range s.byID {
		if o.Slug == m.Slug || (m.AppID != 0 && o.AppID == m.AppID) {
			return fmt.Errorf("fake: create market: %w", domain.ErrAlreadyExists)
		}
	}
	s.byID[m.ID] = m
	return nil
}

func (s *Markets) Update(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; !ok {
		return notFound("market " + m.ID)
	}
	s.byID[m.ID] = m
	return nil
}

func (s *Markets) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.Market{}, s.Err
	}
	m, ok := s.byID[id]
	if !ok {
		return domain.Market{}, notFound("market " + id)
	}
	return m, nil
}

func (s *Markets) GetBySlug(_ context.Context, slug string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if m.Slug == slug {
			return m, nil
		}
	}
	return domain.Market{}, notFound("market " + slug)
}

func (s *Markets) filter(f domain.MarketFilter) []domain.Market {
	var out []domain.Market
	for _, m := range s.byID {
		if len(f.Categories) > 0 && !contains(f.Categories, m.Category) {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, m.Status) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func (s *Markets) List(_ context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return page(s.filter(f), f.Limit, f.Offset), nil
}

func (s *Markets) Count(_ context.Context, f domain.MarketFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.filter(f))), nil
}

func (s *Markets) SetStatus(_ context.Context, id string, status domain.MarketStatus, outcome domain.Outcome, resolvedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return notFound("market " + id)
	}
	m.Status, m.Outcome, m.ResolvedAt = status, outcome, resolvedAt
	s.byID[id] = m
	return nil
}

func (s *Markets) UpdateChainState(_ context.Context, id string, yesPool, noPool, yesPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return notFound("market " + id)
	}
	m.YesPool, m.NoPool, m.YesPrice = yesPool, noPool, yesPrice
	s.byID[id] = m
	return nil
}

func (s *Markets) AddVolume(_ context.Context, id string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return notFound("market " + id)
	}
	m.Volume = m.Volume.Add(amount)
	s.byID[id] = m
	return nil
}

// Snapshots is an in-memory domain.SnapshotStore.
type Snapshots struct {
	mu    sync.Mutex
	Items []domain.MarketSnapshot
}

func (s *Snapshots) InsertBatch(_ context.Context, snaps []domain.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, snaps...)
	return nil
}

func (s *Snapshots) Latest(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	return s.At(ctx, marketID, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (s *Snapshots) At(_ context.Context, marketID string, t time.Time) (domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best domain.MarketSnapshot
	found := false
	for _, sn := range s.Items {
		if sn.MarketID != marketID || sn.TakenAt.After(t) {
			continue
		}
		if !found || sn.TakenAt.After(best.TakenAt) {
			best, found = sn, true
		}
	}
	if !found {
		return domain.MarketSnapshot{}, notFound("snapshot " + marketID)
	}
	return best, nil
}

func (s *Snapshots) History(_ context.Context, marketID string, since time.Time) ([]domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketSnapshot
	for _, sn := range s.Items {
		if sn.MarketID == marketID && !sn.TakenAt.Before(since) {
			out = append(out, sn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

func (s *Snapshots) ListBefore(_ context.Context, before time.Time) ([]domain.MarketSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketSnapshot
	for _, sn := range s.Items {
		if sn.TakenAt.Before(before) {
			out = append(out, sn)
		}
	}
	return out, nil
}

func (s *Snapshots) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Items[:0]
	var n int64
	for _, sn := range s.Items {
		if sn.TakenAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, sn)
	}
	s.Items = kept
	return n, nil
}

// Signals is an in-memory domain.SignalStore.
type Signals struct {
	mu     sync.Mutex
	bySlug map[string]domain.FragilitySignal
}

// NewSignals returns a store seeded with sigs.
func NewSignals(sigs ...domain.FragilitySignal) *Signals {
	s := &Signals{bySlug: make(map[string]domain.FragilitySignal)}
	for _, sg := range sigs {
		s.bySlug[sg.Slug] = sg
	}
	return s
}

func (s *Signals) Upsert(_ context.Context, sig domain.FragilitySignal) (domain.FragilitySignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.bySlug[sig.Slug]; ok && sig.ID == "" {
		sig.ID = old.ID
	}
	s.bySlug[sig.Slug] = sig
	return sig, nil
}

func (s *Signals) GetBySlug(_ context.Context, slug string) (domain.FragilitySignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sg, ok := s.bySlug[slug]
	if !ok {
		return domain.FragilitySignal{}, notFound("signal " + slug)
	}
	return sg, nil
}

func (s *Signals) List(_ context.Context, categories []string) ([]domain.FragilitySignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FragilitySignal
	for _, sg := range s.bySlug {
		if len(categories) == 0 || contains(categories, sg.Category) {
			out = append(out, sg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Signals) Delete(_ context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySlug[slug]; !ok {
		return notFound("signal " + slug)
	}
	delete(s.bySlug, slug)
	return nil
}

// News is an in-memory domain.NewsStore.
type News struct {
	mu    sync.Mutex
	Items []domain.NewsItem
}

func (s *News) InsertBatch(_ context.Context, items []domain.NewsItem) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range items {
		dup := false
		for _, o := range s.Items {
			if o.FeedURL == it.FeedURL && o.GUID == it.GUID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		it.ID = int64(len(s.Items) + 1)
		s.Items = append(s.Items, it)
		n++
	}
	return n, nil
}

func (s *News) ListSince(_ context.Context, since time.Time, categories []string, limit int) ([]domain.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.NewsItem
	for _, it := range s.Items {
		if !it.PublishedAt.Before(since) && it.HasCategory(categories) {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return page(out, limit, 0), nil
}

func (s *News) CountByCategorySince(_ context.Context, since time.Time) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, it := range s.Items {
		if it.PublishedAt.Before(since) {
			continue
		}
		for _, c := range it.Categories {
			counts[c]++
		}
	}
	return counts, nil
}

func (s *News) ListBefore(_ context.Context, before time.Time) ([]domain.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.NewsItem
	for _, it := range s.Items {
		if it.PublishedAt.Before(before) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *News) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Items[:0]
	var n int64
	for _, it := range s.Items {
		if it.PublishedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.Items = kept
	return n, nil
}

// Reports is an in-memory domain.ReportStore.
type Reports struct {
	mu   sync.Mutex
	byID map[string]domain.Report
}

// NewReports returns a store seeded with rs.
func NewReports(rs ...domain.Report) *Reports {
	s := &Reports{byID: make(map[string]domain.Report)}
	for _, r := range rs {
		s.byID[r.ID] = r
	}
	return s
}

func (s *Reports) Create(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.byID {
		if o.Tenant == r.Tenant && o.Kind == r.Kind && o.WeekStart.Equal(r.WeekStart) {
			return fmt.Errorf("fake: create report: %w", domain.ErrAlreadyExists)
		}
	}
	s.byID[r.ID] = r
	return nil
}

func (s *Reports) Update(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; !ok {
		return notFound("report " + r.ID)
	}
	s.byID[r.ID] = r
	return nil
}

func (s *Reports) GetByID(_ context.Context, id string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return domain.Report{}, notFound("report " + id)
	}
	return r, nil
}

func (s *Reports) GetByWeek(_ context.Context, tenant string, kind domain.ReportKind, weekStart time.Time) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.byID {
		if r.Tenant == tenant && r.Kind == kind && r.WeekStart.Equal(weekStart) {
			return r, nil
		}
	}
	return domain.Report{}, notFound("report by week")
}

func (s *Reports) List(_ context.Context, f domain.ReportFilter) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Report
	for _, r := range s.byID {
		if (f.Tenant == "" || r.Tenant == f.Tenant) &&
			(f.Kind == "" || r.Kind == f.Kind) &&
			(f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.After(out[j].WeekStart)
		}
		return out[i].Kind < out[j].Kind
	})
	return page(out, f.Limit, f.Offset), nil
}

func (s *Reports) LatestPublished(ctx context.Context, tenant string, kind domain.ReportKind) (domain.Report, error) {
	rs, _ := s.List(ctx, domain.ReportFilter{Tenant: tenant, Kind: kind, Status: domain.ReportPublished, Limit: 1})
	if len(rs) == 0 {
		return domain.Report{}, notFound("latest report")
	}
	return rs[0], nil
}

// Attention is an in-memory domain.AttentionStore.
type Attention struct {
	mu    sync.Mutex
	Items []domain.AttentionEstimate
}

func (s *Attention) InsertBatch(_ context.Context, estimates []domain.AttentionEstimate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, estimates...)
	return nil
}

func (s *Attention) Latest(_ context.Context, tenant string) ([]domain.AttentionEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]domain.AttentionEstimate)
	for _, e := range s.Items {
		if e.Tenant != tenant {
			continue
		}
		if cur, ok := latest[e.Category]; !ok || e.EstimatedAt.After(cur.EstimatedAt) {
			latest[e.Category] = e
		}
	}
	out := make([]domain.AttentionEstimate, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Attention) History(_ context.Context, tenant, category string, limit int) ([]domain.AttentionEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AttentionEstimate
	for _, e := range s.Items {
		if e.Tenant == tenant && e.Category == category {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EstimatedAt.After(out[j].EstimatedAt) })
	return page(out, limit, 0), nil
}

// Trades is an in-memory domain.TradeStore.
type Trades struct {
	mu    sync.Mutex
	Items []domain.Trade
}

func (s *Trades) Create(_ context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.Items {
		if o.TxID == t.TxID {
			return fmt.Errorf("fake: create trade: %w", domain.ErrAlreadyExists)
		}
	}
	s.Items = append(s.Items, t)
	return nil
}

func (s *Trades) UpdateStatus(_ context.Context, id string, status domain.TradeStatus, round uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items[i].Status = status
			s.Items[i].ConfirmedRound = round
			return nil
		}
	}
	return notFound("trade " + id)
}

func (s *Trades) GetByTxID(_ context.Context, txID string) (domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.Items {
		if t.TxID == txID {
			return t, nil
		}
	}
	return domain.Trade{}, notFound("trade " + txID)
}

func (s *Trades) ListByWallet(_ context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.Items {
		if t.Wallet == wallet {
			out = append(out, t)
		}
	}
	return page(out, opts.Limit, opts.Offset), nil
}

func (s *Trades) ListPending(_ context.Context, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for _, t := range s.Items {
		if t.Status == domain.TradePending {
			out = append(out, t)
		}
	}
	return page(out, limit, 0), nil
}

func (s *Trades) Positions(_ context.Context, wallet string) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMarket := make(map[string]*domain.Position)
	var order []string
	for _, t := range s.Items {
		if t.Wallet != wallet || t.Status != domain.TradeConfirmed {
			continue
		}
		p, ok := byMarket[t.MarketID]
		if !ok {
			p = &domain.Position{Wallet: wallet, MarketID: t.MarketID}
			byMarket[t.MarketID] = p
			order = append(order, t.MarketID)
		}
		if t.Side == domain.SideYes {
			p.YesAmount = p.YesAmount.Add(t.Amount)
		} else {
			p.NoAmount = p.NoAmount.Add(t.Amount)
		}
		p.TradeCount++
	}
	out := make([]domain.Position, 0, len(order))
	for _, id := range order {
		out = append(out, *byMarket[id])
	}
	return out, nil
}

func (s *Trades) SumVolume(_ context.Context, marketID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, t := range s.Items {
		if t.MarketID == marketID && t.Status == domain.TradeConfirmed {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

// Subscribers is an in-memory domain.SubscriberStore.
type Subscribers struct {
	mu    sync.Mutex
	Items []domain.Subscriber
}

func (s *Subscribers) Create(_ context.Context, sub domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.Items {
		if o.Email == sub.Email && o.Tenant == sub.Tenant {
			return fmt.Errorf("fake: create subscriber: %w", domain.ErrAlreadyExists)
		}
	}
	s.Items = append(s.Items, sub)
	return nil
}

func (s *Subscribers) Count(_ context.Context, tenant string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, o := range s.Items {
		if tenant == "" || o.Tenant == tenant {
			n++
		}
	}
	return n, nil
}

// Audit is an in-memory domain.AuditStore.
type Audit struct {
	mu      sync.Mutex
	Entries []domain.AuditEntry
}

func (s *Audit) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries = append(s.Entries, domain.AuditEntry{
		ID:        int64(len(s.Entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *Audit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(append([]domain.AuditEntry(nil), s.Entries...), opts.Limit, opts.Offset), nil
}

// Events returns the logged event names in order.
func (s *Audit) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Event
	}
	return out
}

func contains[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func page[T any](s []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(s) {
			return nil
		}
		s = s[offset:]
	}
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}
