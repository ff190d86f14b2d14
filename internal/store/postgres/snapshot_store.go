package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `market_id, yes_price, yes_pool, no_pool, volume, taken_at`

func scanSnapshot(row pgx.Row) (domain.MarketSnapshot, error) {
	var s domain.MarketSnapshot
	err := row.Scan(&s.MarketID, &s.YesPrice, &s.YesPool, &s.NoPool, &s.Volume, &s.TakenAt)
	return s, err
}

// InsertBatch writes snaps in a single round trip.
func (s *SnapshotStore) InsertBatch(ctx context.Context, snaps []domain.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	const query = `INSERT INTO market_snapshots (` + snapshotCols + `) VALUES ($1, $2, $3, $4, $5, $6)`

	batch := &pgx.Batch{}
	for _, sn := range snaps {
		batch.Queue(query, sn.MarketID, sn.YesPrice, sn.YesPool, sn.NoPool, sn.Volume, sn.TakenAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot batch item %d: %w", i, err)
		}
	}
	return nil
}

// Latest returns the newest snapshot for a market.
func (s *SnapshotStore) Latest(ctx context.Context, marketID string) (domain.MarketSnapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+snapshotCols+` FROM market_snapshots
		WHERE market_id = $1 ORDER BY taken_at DESC LIMIT 1`, marketID)
	sn, err := scanSnapshot(row)
	if err != nil {
		return domain.MarketSnapshot{}, notFound(err, "latest snapshot "+marketID)
	}
	return sn, nil
}

// At returns the newest snapshot taken at or before t.
func (s *SnapshotStore) At(ctx context.Context, marketID string, t time.Time) (domain.MarketSnapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+snapshotCols+` FROM market_snapshots
		WHERE market_id = $1 AND taken_at <= $2 ORDER BY taken_at DESC LIMIT 1`, marketID, t)
	sn, err := scanSnapshot(row)
	if err != nil {
		return domain.MarketSnapshot{}, notFound(err, "snapshot at "+marketID)
	}
	return sn, nil
}

// History returns snapshots for a market since the given time, oldest first.
func (s *SnapshotStore) History(ctx context.Context, marketID string, since time.Time) ([]domain.MarketSnapshot, error) {
	return s.query(ctx, "snapshot history", `SELECT `+snapshotCols+` FROM market_snapshots
		WHERE market_id = $1 AND taken_at >= $2 ORDER BY taken_at ASC`, marketID, since)
}

// ListBefore returns every snapshot older than before, for archiving.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.MarketSnapshot, error) {
	return s.query(ctx, "list snapshots before", `SELECT `+snapshotCols+` FROM market_snapshots
		WHERE taken_at < $1 ORDER BY taken_at ASC`, before)
}

// DeleteBefore removes snapshots older than before.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM market_snapshots WHERE taken_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *SnapshotStore) query(ctx context.Context, op, sql string, args ...any) ([]domain.MarketSnapshot, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.MarketSnapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s scan: %w", op, err)
		}
		out = append(out, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}
