package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/algorand"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/notify"
)

// AppReader reads market application state from the chain.
type AppReader interface {
	AppState(ctx context.Context, appID uint64) (algorand.AppState, error)
}

// Notifier delivers operational alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MarketInput is the admin-editable part of a market.
type MarketInput struct {
	Slug             string     `json:"slug"`
	Question         string     `json:"question"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	AppID            uint64     `json:"app_id"`
	ClosesAt         *time.Time `json:"closes_at"`
	FragilitySignals []string   `json:"fragility_signals"`
}

// SyncResult summarizes one chain sync run.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// PoolKeys names the global-state keys holding the pools.
type PoolKeys struct {
	Yes string
	No  string
}

// MarketService manages markets and mirrors their on-chain pools.
type MarketService struct {
	markets   domain.MarketStore
	snapshots domain.SnapshotStore
	trades    domain.TradeStore
	cache     domain.MarketCache
	bus       domain.EventEmitter
	chain     AppReader
	notifier  Notifier
	audit     domain.AuditStore
	keys      PoolKeys
	tenants   map[string]domain.Tenant
	logger    *slog.Logger
	now       func() time.Time
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	markets domain.MarketStore,
	snapshots domain.SnapshotStore,
	trades domain.TradeStore,
	cache domain.MarketCache,
	bus domain.EventEmitter,
	chain AppReader,
	notifier Notifier,
	audit domain.AuditStore,
	keys PoolKeys,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:   markets,
		snapshots: snapshots,
		trades:    trades,
		cache:     cache,
		bus:       bus,
		chain:     chain,
		notifier:  notifier,
		audit:     audit,
		keys:      keys,
		logger:    logger,
		now:       time.Now,
	}
}

// WithTenants registers the configured tenants so edits are validated against
// the tenant that owns a market.
func (s *MarketService) WithTenants(tenants []domain.Tenant) *MarketService {
	s.tenants = make(map[string]domain.Tenant, len(tenants))
	for _, t := range tenants {
		s.tenants[t.Slug] = t
	}
	return s
}

// ownerOf returns the tenant that created m, or fallback when that tenant is
// no longer configured.
func (s *MarketService) ownerOf(m domain.Market, fallback domain.Tenant) domain.Tenant {
	if t, ok := s.tenants[m.Tenant]; ok {
		return t
	}
	return fallback
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if m, err := s.cache.Get(ctx, id); err == nil {
		return m, nil
	}

	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by id %q: %w", id, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// GetBySlug retrieves a market by slug, cache first.
func (s *MarketService) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	if m, err := s.cache.GetBySlug(ctx, slug); err == nil {
		return m, nil
	}

	m, err := s.markets.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by slug %q: %w", slug, err)
	}
	s.backfill(ctx, m)
	return m, nil
}

// GetForTenant returns a market by slug when it belongs to tenant's
// categories.
func (s *MarketService) GetForTenant(ctx context.Context, tenant domain.Tenant, slug string) (domain.Market, error) {
	m, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Market{}, err
	}
	if !tenant.AllowsCategory(m.Category) {
		return domain.Market{}, fmt.Errorf("market_service: %s not in tenant %s: %w", slug, tenant.Slug, domain.ErrNotFound)
	}
	return m, nil
}

func (s *MarketService) backfill(ctx context.Context, m domain.Market) {
	if err := s.cache.Set(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.String("market_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// Non-fatal: the entry expires on its own.
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// List returns markets visible to tenant. Requested categories outside the
// tenant's filter are dropped. Drafts are only listed when asked for.
func (s *MarketService) List(ctx context.Context, tenant domain.Tenant, f domain.MarketFilter) ([]domain.Market, int64, error) {
	if len(f.Categories) > 0 {
		var allowed []string
		for _, c := range f.Categories {
			if tenant.AllowsCategory(c) {
				allowed = append(allowed, c)
			}
		}
		if len(allowed) == 0 {
			return []domain.Market{}, 0, nil
		}
		f.Categories = allowed
	} else {
		f.Categories = tenant.Categories
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []domain.MarketStatus{domain.MarketStatusOpen, domain.MarketStatusClosed, domain.MarketStatusResolved}
	}

	markets, err := s.markets.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: list: %w", err)
	}
	total, err := s.markets.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service: count: %w", err)
	}
	if markets == nil {
		markets = []domain.Market{}
	}
	return markets, total, nil
}

// History returns the snapshots of a market over the last days.
func (s *MarketService) History(ctx context.Context, tenant domain.Tenant, slug string, days int) ([]domain.MarketSnapshot, error) {
	if days <= 0 {
		days = 7
	}
	if days > 365 {
		days = 365
	}
	m, err := s.GetForTenant(ctx, tenant, slug)
	if err != nil {
		return nil, err
	}
	snaps, err := s.snapshots.History(ctx, m.ID, s.now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("market_service: history %s: %w", slug, err)
	}
	if snaps == nil {
		snaps = []domain.MarketSnapshot{}
	}
	return snaps, nil
}

// Create validates in and stores a new draft market for tenant. An empty slug
// is derived from the question.
func (s *MarketService) Create(ctx context.Context, tenant domain.Tenant, in MarketInput) (domain.Market, error) {
	in = normalizeInput(in)
	if err := validateMarketInput(tenant, in, s.now()); err != nil {
		return domain.Market{}, err
	}

	now := s.now().UTC()
	m := domain.Market{
		ID:               uuid.NewString(),
		Slug:             in.Slug,
		Question:         in.Question,
		Description:      in.Description,
		Category:         in.Category,
		Tenant:           tenant.Slug,
		AppID:            in.AppID,
		Status:           domain.MarketStatusDraft,
		YesPrice:         decimal.RequireFromString("0.5"),
		YesPool:          decimal.Zero,
		NoPool:           decimal.Zero,
		Volume:           decimal.Zero,
		FragilitySignals: in.FragilitySignals,
		ClosesAt:         in.ClosesAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.markets.Create(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create %s: %w", m.Slug, err)
	}

	s.logAudit(ctx, "market_created", m)
	s.emit(ctx, "market_created", m)
	return m, nil
}

// Update replaces the metadata of a market that is not yet settled.
func (s *MarketService) Update(ctx context.Context, tenant domain.Tenant, id string, in MarketInput) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	if m.Status == domain.MarketStatusResolved || m.Status == domain.MarketStatusCancelled {
		return domain.Market{}, fmt.Errorf("market_service: update %s market: %w", m.Status, domain.ErrInvalidTransition)
	}
	if in.Slug == "" {
		in.Slug = m.Slug
	}
	in = normalizeInput(in)
	if err := validateMarketInput(s.ownerOf(m, tenant), in, time.Time{}); err != nil {
		return domain.Market{}, err
	}

	m.Slug = in.Slug
	m.Question = in.Question
	m.Description = in.Description
	m.Category = in.Category
	m.AppID = in.AppID
	m.ClosesAt = in.ClosesAt
	m.FragilitySignals = in.FragilitySignals
	m.UpdatedAt = s.now().UTC()
	if err := s.markets.Update(ctx, m); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: update %s: %w", id, err)
	}

	s.invalidate(ctx, id)
	s.logAudit(ctx, "market_updated", m)
	s.emit(ctx, "market_updated", m)
	return m, nil
}

// SetStatus moves a market through draft -> open -> closed, or cancels it.
// Resolution goes through Resolve.
func (s *MarketService) SetStatus(ctx context.Context, id string, next domain.MarketStatus) (domain.Market, error) {
	if !next.Valid() {
		return domain.Market{}, fmt.Errorf("market_service: status %q: %w", next, domain.ErrInvalidInput)
	}
	if next == domain.MarketStatusResolved {
		return domain.Market{}, fmt.Errorf("market_service: resolve needs an outcome: %w", domain.ErrInvalidInput)
	}
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	if !m.Status.CanTransition(next) {
		return domain.Market{}, fmt.Errorf("market_service: %s -> %s: %w", m.Status, next, domain.ErrInvalidTransition)
	}
	if next == domain.MarketStatusOpen && m.AppID == 0 {
		return domain.Market{}, fmt.Errorf("market_service: open %s without app id: %w", m.Slug, domain.ErrInvalidInput)
	}

	if err := s.markets.SetStatus(ctx, id, next, domain.OutcomeNone, nil); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: set status %s: %w", id, err)
	}
	m.Status = next
	m.UpdatedAt = s.now().UTC()

	s.invalidate(ctx, id)
	s.logAudit(ctx, "market_"+string(next), m)
	s.emit(ctx, "market_status", m)
	return m, nil
}

// Resolve settles a closed market with outcome.
func (s *MarketService) Resolve(ctx context.Context, id string, outcome domain.Outcome) (domain.Market, error) {
	if outcome != domain.OutcomeYes && outcome != domain.OutcomeNo {
		return domain.Market{}, fmt.Errorf("market_service: outcome %q: %w", outcome, domain.ErrInvalidInput)
	}
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	if !m.Status.CanTransition(domain.MarketStatusResolved) {
		return domain.Market{}, fmt.Errorf("market_service: resolve %s market: %w", m.Status, domain.ErrInvalidTransition)
	}

	now := s.now().UTC()
	if err := s.markets.SetStatus(ctx, id, domain.MarketStatusResolved, outcome, &now); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: resolve %s: %w", id, err)
	}
	m.Status = domain.MarketStatusResolved
	m.Outcome = outcome
	m.ResolvedAt = &now
	m.UpdatedAt = now

	s.invalidate(ctx, id)
	s.logAudit(ctx, "market_resolved", m)
	s.emit(ctx, "market_resolved", m)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.EventMarketResolved, "Market resolved",
			fmt.Sprintf("%s resolved %s.", m.Question, strings.ToUpper(string(outcome)))); err != nil {
			s.logger.WarnContext(ctx, "market_service: notify failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "market_service: market resolved",
		slog.String("market_id", id),
		slog.String("outcome", string(outcome)),
	)
	return m, nil
}

// SyncChain reads the pools of every open market with an app, updates the
// mirrored price and records a snapshot batch. A market whose app cannot be
// read is counted as failed and skipped.
func (s *MarketService) SyncChain(ctx context.Context) (SyncResult, error) {
	open, err := s.markets.List(ctx, domain.MarketFilter{Statuses: []domain.MarketStatus{domain.MarketStatusOpen}})
	if err != nil {
		return SyncResult{}, fmt.Errorf("market_service: list open: %w", err)
	}

	var res SyncResult
	now := s.now().UTC()
	snaps := make([]domain.MarketSnapshot, 0, len(open))
	for _, m := range open {
		if m.AppID == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		state, err := s.chain.AppState(ctx, m.AppID)
		if err == nil {
			var pools algorand.Pools
			pools, err = algorand.PoolPrice(state, s.keys.Yes, s.keys.No)
			if err == nil {
				err = s.markets.UpdateChainState(ctx, m.ID, pools.Yes, pools.No, pools.YesPrice)
			}
			if err == nil {
				moved := !m.YesPrice.Equal(pools.YesPrice)
				changed := moved || !m.YesPool.Equal(pools.Yes) || !m.NoPool.Equal(pools.No)
				m.YesPool, m.NoPool, m.YesPrice = pools.Yes, pools.No, pools.YesPrice
				if changed {
					s.invalidate(ctx, m.ID)
				}
				if moved {
					s.emit(ctx, "market_price", m)
				}
			}
		}
		if err != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "market_service: chain sync failed",
				slog.String("market_id", m.ID),
				slog.Uint64("app_id", m.AppID),
				slog.String("error", err.Error()),
			)
			continue
		}

		volume := m.Volume
		if s.trades != nil {
			if v, err := s.trades.SumVolume(ctx, m.ID); err == nil {
				volume = v
			}
		}
		snaps = append(snaps, domain.MarketSnapshot{
			MarketID: m.ID,
			YesPrice: m.YesPrice,
			YesPool:  m.YesPool,
			NoPool:   m.NoPool,
			Volume:   volume,
			TakenAt:  now,
		})
		res.Synced++
	}

	if len(snaps) > 0 {
		if err := s.snapshots.InsertBatch(ctx, snaps); err != nil {
			return res, fmt.Errorf("market_service: insert snapshots: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "market_service: chain synced",
		slog.Int("synced", res.Synced),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

// CountOpen returns the number of open markets.
func (s *MarketService) CountOpen(ctx context.Context) (int64, error) {
	n, err := s.markets.Count(ctx, domain.MarketFilter{Statuses: []domain.MarketStatus{domain.MarketStatusOpen}})
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return n, nil
}

func (s *MarketService) emit(ctx context.Context, eventType string, m domain.Market) {
	if err := s.bus.Emit(ctx, domain.ChannelMarket, eventType, domain.ForCategory(m.Category), m); err != nil {
		s.logger.WarnContext(ctx, "market_service: emit failed",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MarketService) logAudit(ctx context.Context, event string, m domain.Market) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, map[string]any{
		"market_id": m.ID,
		"slug":      m.Slug,
		"status":    string(m.Status),
		"outcome":   string(m.Outcome),
	}); err != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed", slog.String("error", err.Error()))
	}
}

func normalizeInput(in MarketInput) MarketInput {
	in.Question = strings.TrimSpace(in.Question)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Slug = Slugify(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Question)
	}
	if in.FragilitySignals == nil {
		in.FragilitySignals = []string{}
	}
	return in
}

// validateMarketInput collects every problem with in. A zero now skips the
// closing-time check.
func validateMarketInput(tenant domain.Tenant, in MarketInput, now time.Time) error {
	var errs []string
	if n := len([]rune(in.Question)); n < 10 || n > 300 {
		errs = append(errs, "question must be 10-300 characters")
	}
	if in.Slug == "" {
		errs = append(errs, "slug is required")
	}
	if in.Category == "" {
		errs = append(errs, "category is required")
	} else if !tenant.AllowsCategory(in.Category) {
		errs = append(errs, fmt.Sprintf("category %q is not offered by tenant %s", in.Category, tenant.Slug))
	}
	if in.ClosesAt != nil && !now.IsZero() && !in.ClosesAt.After(now) {
		errs = append(errs, "closes_at must be in the future")
	}
	if len(errs) > 0 {
		return fmt.Errorf("market_service: %s: %w", strings.Join(errs, "; "), domain.ErrInvalidInput)
	}
	return nil
}

// Slugify lower-cases s and joins its letters and digits with single hyphens,
// capped at 80 characters.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	out := b.String()
	if len(out) > 80 {
		out = strings.TrimRight(out[:80], "-")
	}
	return out
}
