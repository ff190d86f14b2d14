package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// NewsStore implements domain.NewsStore using PostgreSQL.
type NewsStore struct {
	pool *pgxpool.Pool
}

// NewNewsStore creates a new NewsStore backed by the given pool.
func NewNewsStore(pool *pgxpool.Pool) *NewsStore {
	return &NewsStore{pool: pool}
}

const newsCols = `id, feed_url, source, guid, title, summary, link, categories, published_at, fetched_at`

func scanNews(row pgx.Row) (domain.NewsItem, error) {
	var n domain.NewsItem
	err := row.Scan(&n.ID, &n.FeedURL, &n.Source, &n.GUID, &n.Title, &n.Summary,
		&n.Link, &n.Categories, &n.PublishedAt, &n.FetchedAt)
	return n, err
}

// InsertBatch stores items, skipping (feed_url, guid) pairs already present,
// and returns how many rows were new.
func (s *NewsStore) InsertBatch(ctx context.Context, items []domain.NewsItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	const query = `
		INSERT INTO news_items (feed_url, source, guid, title, summary, link, categories, published_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (feed_url, guid) DO NOTHING`

	batch := &pgx.Batch{}
	for _, n := range items {
		cats := n.Categories
		if cats == nil {
			cats = []string{}
		}
		batch.Queue(query, n.FeedURL, n.Source, n.GUID, n.Title, n.Summary, n.Link, cats, n.PublishedAt, n.FetchedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range items {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert news batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// ListSince returns items published at or after since that carry any of the
// categories (all when empty), newest first.
func (s *NewsStore) ListSince(ctx context.Context, since time.Time, categories []string, limit int) ([]domain.NewsItem, error) {
	w := &where{}
	w.add("published_at >= ?", since)
	if len(categories) > 0 {
		w.add("categories && ?", categories)
	}
	query := `SELECT ` + newsCols + ` FROM news_items` + w.sql() + ` ORDER BY published_at DESC` + w.page(limit, 0)
	return s.query(ctx, "list news since", query, w.args...)
}

// CountByCategorySince counts items per category published at or after since.
// An item tagged with two categories counts towards both.
func (s *NewsStore) CountByCategorySince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cat, COUNT(*) FROM news_items, UNNEST(categories) AS cat
		WHERE published_at >= $1 GROUP BY cat`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: count news by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan news count: %w", err)
		}
		out[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count news rows: %w", err)
	}
	return out, nil
}

// ListBefore returns items fetched before the cutoff, oldest first.
func (s *NewsStore) ListBefore(ctx context.Context, before time.Time) ([]domain.NewsItem, error) {
	return s.query(ctx, "list news before",
		`SELECT `+newsCols+` FROM news_items WHERE fetched_at < $1 ORDER BY fetched_at ASC`, before)
}

// DeleteBefore removes items fetched before the cutoff.
func (s *NewsStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM news_items WHERE fetched_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete news: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *NewsStore) query(ctx context.Context, op, sql string, args ...any) ([]domain.NewsItem, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.NewsItem
	for rows.Next() {
		n, err := scanNews(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s scan: %w", op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}
