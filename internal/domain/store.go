package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata and the mirrored chain state.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Update(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	GetBySlug(ctx context.Context, slug string) (Market, error)
	List(ctx context.Context, f MarketFilter) ([]Market, error)
	Count(ctx context.Context, f MarketFilter) (int64, error)
	SetStatus(ctx context.Context, id string, status MarketStatus, outcome Outcome, resolvedAt *time.Time) error
	UpdateChainState(ctx context.Context, id string, yesPool, noPool, yesPrice decimal.Decimal) error
	AddVolume(ctx context.Context, id string, amount decimal.Decimal) error
}

// SnapshotStore persists periodic market snapshots.
type SnapshotStore interface {
	InsertBatch(ctx context.Context, snaps []MarketSnapshot) error
	Latest(ctx context.Context, marketID string) (MarketSnapshot, error)
	// At returns the newest snapshot taken at or before t.
	At(ctx context.Context, marketID string, t time.Time) (MarketSnapshot, error)
	History(ctx context.Context, marketID string, since time.Time) ([]MarketSnapshot, error)
	ListBefore(ctx context.Context, before time.Time) ([]MarketSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SignalStore persists fragility signals.
type SignalStore interface {
	Upsert(ctx context.Context, s FragilitySignal) (FragilitySignal, error)
	GetBySlug(ctx context.Context, slug string) (FragilitySignal, error)
	List(ctx context.Context, categories []string) ([]FragilitySignal, error)
	Delete(ctx context.Context, slug string) error
}

// NewsStore persists ingested news items.
type NewsStore interface {
	// InsertBatch stores items, skipping ones already seen for the same feed
	// and GUID. It returns the number of new rows.
	InsertBatch(ctx context.Context, items []NewsItem) (int64, error)
	ListSince(ctx context.Context, since time.Time, categories []string, limit int) ([]NewsItem, error)
	CountByCategorySince(ctx context.Context, since time.Time) (map[string]int, error)
	ListBefore(ctx context.Context, before time.Time) ([]NewsItem, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReportStore persists weekly reports.
type ReportStore interface {
	Create(ctx context.Context, r Report) error
	Update(ctx context.Context, r Report) error
	GetByID(ctx context.Context, id string) (Report, error)
	GetByWeek(ctx context.Context, tenant string, kind ReportKind, weekStart time.Time) (Report, error)
	List(ctx context.Context, f ReportFilter) ([]Report, error)
	LatestPublished(ctx context.Context, tenant string, kind ReportKind) (Report, error)
}

// AttentionStore persists attention estimates.
type AttentionStore interface {
	InsertBatch(ctx context.Context, estimates []AttentionEstimate) error
	// Latest returns the newest estimate per category for a tenant.
	Latest(ctx context.Context, tenant string) ([]AttentionEstimate, error)
	History(ctx context.Context, tenant, category string, limit int) ([]AttentionEstimate, error)
}

// TradeStore persists wallet trades.
type TradeStore interface {
	Create(ctx context.Context, t Trade) error
	UpdateStatus(ctx context.Context, id string, status TradeStatus, round uint64) error
	GetByTxID(ctx context.Context, txID string) (Trade, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Trade, error)
	ListPending(ctx context.Context, limit int) ([]Trade, error)
	Positions(ctx context.Context, wallet string) ([]Position, error)
	// SumVolume totals the confirmed trade amounts of a market.
	SumVolume(ctx context.Context, marketID string) (decimal.Decimal, error)
}

// SubscriberStore persists newsletter sign-ups.
type SubscriberStore interface {
	Create(ctx context.Context, s Subscriber) error
	Count(ctx context.Context, tenant string) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
