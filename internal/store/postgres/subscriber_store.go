package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SubscriberStore implements domain.SubscriberStore using PostgreSQL.
type SubscriberStore struct {
	pool *pgxpool.Pool
}

// NewSubscriberStore creates a new SubscriberStore backed by the given pool.
func NewSubscriberStore(pool *pgxpool.Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Create stores a sign-up. The same email on the same tenant yields
// domain.ErrAlreadyExists.
func (s *SubscriberStore) Create(ctx context.Context, sub domain.Subscriber) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscribers (id, email, tenant, source, created_at) VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.Email, sub.Tenant, sub.Source, sub.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create subscriber: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create subscriber: %w", err)
	}
	return nil
}

// Count returns the number of subscribers of a tenant.
func (s *SubscriberStore) Count(ctx context.Context, tenant string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers WHERE tenant = $1`, tenant).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count subscribers: %w", err)
	}
	return n, nil
}
