package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, tx_id, wallet, market_id, side, amount, status, confirmed_round, created_at, updated_at`

func scanTrade(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var side, status string
	err := row.Scan(&t.ID, &t.TxID, &t.Wallet, &t.MarketID, &side, &t.Amount,
		&status, &t.ConfirmedRound, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	return t, nil
}

// Create records a trade. A repeated transaction id yields
// domain.ErrAlreadyExists.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `INSERT INTO trades (` + tradeCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query, t.ID, t.TxID, t.Wallet, t.MarketID, string(t.Side), t.Amount,
		string(t.Status), t.ConfirmedRound, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create trade %s: %w", t.TxID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create trade %s: %w", t.TxID, err)
	}
	return nil
}

// UpdateStatus sets the confirmation status and round of a trade.
func (s *TradeStore) UpdateStatus(ctx context.Context, id string, status domain.TradeStatus, round uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET status = $2, confirmed_round = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), round)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update trade %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByTxID retrieves a trade by its Algorand transaction id.
func (s *TradeStore) GetByTxID(ctx context.Context, txID string) (domain.Trade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx, `SELECT `+tradeCols+` FROM trades WHERE tx_id = $1`, txID))
	if err != nil {
		return domain.Trade{}, notFound(err, "get trade "+txID)
	}
	return t, nil
}

// ListByWallet returns a wallet's trades, newest first.
func (s *TradeStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error) {
	w := &where{}
	w.add("wallet = ?", wallet)
	if opts.Since != nil {
		w.add("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		w.add("created_at <= ?", *opts.Until)
	}
	query := `SELECT ` + tradeCols + ` FROM trades` + w.sql() + ` ORDER BY created_at DESC` + w.page(opts.Limit, opts.Offset)
	return s.query(ctx, "list trades by wallet", query, w.args...)
}

// ListPending returns the oldest unconfirmed trades.
func (s *TradeStore) ListPending(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, "list pending trades", `SELECT `+tradeCols+` FROM trades
		WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`, limit)
}

// Positions aggregates a wallet's confirmed trades per market.
func (s *TradeStore) Positions(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id,
			COALESCE(SUM(amount) FILTER (WHERE side = 'yes'), 0),
			COALESCE(SUM(amount) FILTER (WHERE side = 'no'), 0),
			COUNT(*)
		FROM trades
		WHERE wallet = $1 AND status = 'confirmed'
		GROUP BY market_id
		ORDER BY market_id`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: positions %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p := domain.Position{Wallet: wallet}
		if err := rows.Scan(&p.MarketID, &p.YesAmount, &p.NoAmount, &p.TradeCount); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: positions rows: %w", err)
	}
	return out, nil
}

// SumVolume totals the confirmed trade amounts of a market.
func (s *TradeStore) SumVolume(ctx context.Context, marketID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM trades
		WHERE market_id = $1 AND status = 'confirmed'`, marketID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: sum volume %s: %w", marketID, err)
	}
	return total, nil
}

func (s *TradeStore) query(ctx context.Context, op, sql string, args ...any) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s scan: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}
