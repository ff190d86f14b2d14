package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalCols = `id, slug, name, description, category, level, trend, source, updated_at`

func scanSignal(row pgx.Row) (domain.FragilitySignal, error) {
	var s domain.FragilitySignal
	var trend string
	if err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Description, &s.Category,
		&s.Level, &trend, &s.Source, &s.UpdatedAt); err != nil {
		return domain.FragilitySignal{}, err
	}
	s.Trend = domain.SignalTrend(trend)
	return s, nil
}

// Upsert inserts or updates a signal keyed by slug and returns the stored row.
func (s *SignalStore) Upsert(ctx context.Context, sig domain.FragilitySignal) (domain.FragilitySignal, error) {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO fragility_signals (id, slug, name, description, category, level, trend, source, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (slug) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			level       = EXCLUDED.level,
			trend       = EXCLUDED.trend,
			source      = EXCLUDED.source,
			updated_at  = NOW()
		RETURNING ` + signalCols

	out, err := scanSignal(s.pool.QueryRow(ctx, query,
		sig.ID, sig.Slug, sig.Name, sig.Description, sig.Category, sig.Level, string(sig.Trend), sig.Source))
	if err != nil {
		return domain.FragilitySignal{}, fmt.Errorf("postgres: upsert signal %s: %w", sig.Slug, err)
	}
	return out, nil
}

// GetBySlug retrieves a signal by slug.
func (s *SignalStore) GetBySlug(ctx context.Context, slug string) (domain.FragilitySignal, error) {
	out, err := scanSignal(s.pool.QueryRow(ctx, `SELECT `+signalCols+` FROM fragility_signals WHERE slug = $1`, slug))
	if err != nil {
		return domain.FragilitySignal{}, notFound(err, "get signal "+slug)
	}
	return out, nil
}

// List returns signals in the given categories (all when empty), highest
// level first.
func (s *SignalStore) List(ctx context.Context, categories []string) ([]domain.FragilitySignal, error) {
	w := &where{}
	if len(categories) > 0 {
		w.add("category = ANY(?)", categories)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+signalCols+` FROM fragility_signals`+w.sql()+
		` ORDER BY level DESC, slug ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	var out []domain.FragilitySignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list signals rows: %w", err)
	}
	return out, nil
}

// Delete removes a signal by slug.
func (s *SignalStore) Delete(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fragility_signals WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("postgres: delete signal %s: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete signal %s: %w", slug, domain.ErrNotFound)
	}
	return nil
}
