package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, slug, question, description, category, tenant, app_id,
	status, outcome, yes_price, yes_pool, no_pool, volume, fragility_signals,
	closes_at, resolved_at, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status, outcome string
	err := row.Scan(
		&m.ID, &m.Slug, &m.Question, &m.Description, &m.Category, &m.Tenant, &m.AppID,
		&status, &outcome, &m.YesPrice, &m.YesPool, &m.NoPool, &m.Volume, &m.FragilitySignals,
		&m.ClosesAt, &m.ResolvedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.Outcome = domain.Outcome(outcome)
	if m.FragilitySignals == nil {
		m.FragilitySignals = []string{}
	}
	return m, nil
}

// Create inserts a new market. A clashing slug or app id yields
// domain.ErrAlreadyExists.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (` + marketCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	signals := m.FragilitySignals
	if signals == nil {
		signals = []string{}
	}
	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Slug, m.Question, m.Description, m.Category, m.Tenant, m.AppID,
		string(m.Status), string(m.Outcome), m.YesPrice, m.YesPool, m.NoPool, m.Volume, signals,
		m.ClosesAt, m.ResolvedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create market %s: %w", m.Slug, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create market %s: %w", m.Slug, err)
	}
	return nil
}

// Update overwrites the editable metadata of a market. Chain state and status
// have dedicated methods.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			slug = $2, question = $3, description = $4, category = $5,
			app_id = $6, fragility_signals = $7, closes_at = $8, updated_at = NOW()
		WHERE id = $1`

	signals := m.FragilitySignals
	if signals == nil {
		signals = []string{}
	}
	tag, err := s.pool.Exec(ctx, query,
		m.ID, m.Slug, m.Question, m.Description, m.Category, m.AppID, signals, m.ClosesAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: update market %s: %w", m.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id))
	if err != nil {
		return domain.Market{}, notFound(err, "get market "+id)
	}
	return m, nil
}

// GetBySlug retrieves a market by its URL slug.
func (s *MarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE slug = $1`, slug))
	if err != nil {
		return domain.Market{}, notFound(err, "get market by slug "+slug)
	}
	return m, nil
}

func marketWhere(f domain.MarketFilter) *where {
	w := &where{}
	if len(f.Categories) > 0 {
		w.add("category = ANY(?)", f.Categories)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		w.add("status = ANY(?)", statuses)
	}
	return w
}

// List returns markets matching f, newest first.
func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter) ([]domain.Market, error) {
	w := marketWhere(f)
	query := `SELECT ` + marketCols + ` FROM markets` + w.sql() + ` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the number of markets matching f, ignoring pagination.
func (s *MarketStore) Count(ctx context.Context, f domain.MarketFilter) (int64, error) {
	w := marketWhere(f)
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`+w.sql(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

// SetStatus moves a market to status, recording the outcome and resolution
// time when given.
func (s *MarketStore) SetStatus(ctx context.Context, id string, status domain.MarketStatus, outcome domain.Outcome, resolvedAt *time.Time) error {
	const query = `
		UPDATE markets SET status = $2, outcome = $3, resolved_at = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, string(status), string(outcome), resolvedAt)
	if err != nil {
		return fmt.Errorf("postgres: set market status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set market status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateChainState stores the pools and price read from the market's app.
func (s *MarketStore) UpdateChainState(ctx context.Context, id string, yesPool, noPool, yesPrice decimal.Decimal) error {
	const query = `
		UPDATE markets SET yes_pool = $2, no_pool = $3, yes_price = $4, updated_at = NOW()
		WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, yesPool, noPool, yesPrice); err != nil {
		return fmt.Errorf("postgres: update chain state %s: %w", id, err)
	}
	return nil
}

// AddVolume increments the traded volume of a market.
func (s *MarketStore) AddVolume(ctx context.Context, id string, amount decimal.Decimal) error {
	const query = `UPDATE markets SET volume = volume + $2, updated_at = NOW() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, id, amount); err != nil {
		return fmt.Errorf("postgres: add volume %s: %w", id, err)
	}
	return nil
}
