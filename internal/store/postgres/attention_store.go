package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// AttentionStore implements domain.AttentionStore using PostgreSQL.
type AttentionStore struct {
	pool *pgxpool.Pool
}

// NewAttentionStore creates a new AttentionStore backed by the given pool.
func NewAttentionStore(pool *pgxpool.Pool) *AttentionStore {
	return &AttentionStore{pool: pool}
}

const attentionCols = `id, tenant, category, attention, engagement, market_worthiness,
	composite, rationale, suggested_question, news_count, model, estimated_at`

func scanAttention(row pgx.Row) (domain.AttentionEstimate, error) {
	var a domain.AttentionEstimate
	err := row.Scan(&a.ID, &a.Tenant, &a.Category, &a.Attention, &a.Engagement, &a.MarketWorthiness,
		&a.Composite, &a.Rationale, &a.SuggestedQuestion, &a.NewsCount, &a.Model, &a.EstimatedAt)
	return a, err
}

// InsertBatch stores a run's estimates.
func (s *AttentionStore) InsertBatch(ctx context.Context, estimates []domain.AttentionEstimate) error {
	if len(estimates) == 0 {
		return nil
	}
	const query = `INSERT INTO attention_estimates (` + attentionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	batch := &pgx.Batch{}
	for _, a := range estimates {
		batch.Queue(query, a.ID, a.Tenant, a.Category, a.Attention, a.Engagement, a.MarketWorthiness,
			a.Composite, a.Rationale, a.SuggestedQuestion, a.NewsCount, a.Model, a.EstimatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range estimates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert attention batch item %d: %w", i, err)
		}
	}
	return nil
}

// Latest returns the newest estimate per category for a tenant, highest
// composite first.
func (s *AttentionStore) Latest(ctx context.Context, tenant string) ([]domain.AttentionEstimate, error) {
	return s.query(ctx, "latest attention", `
		SELECT * FROM (
			SELECT DISTINCT ON (category) `+attentionCols+`
			FROM attention_estimates WHERE tenant = $1
			ORDER BY category, estimated_at DESC
		) latest ORDER BY composite DESC, category ASC`, tenant)
}

// History returns recent estimates of one category, newest first.
func (s *AttentionStore) History(ctx context.Context, tenant, category string, limit int) ([]domain.AttentionEstimate, error) {
	if limit <= 0 {
		limit = 30
	}
	return s.query(ctx, "attention history", `SELECT `+attentionCols+` FROM attention_estimates
		WHERE tenant = $1 AND category = $2 ORDER BY estimated_at DESC LIMIT $3`, tenant, category, limit)
}

func (s *AttentionStore) query(ctx context.Context, op, sql string, args ...any) ([]domain.AttentionEstimate, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.AttentionEstimate
	for rows.Next() {
		a, err := scanAttention(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s scan: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}
