package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// ReportStore implements domain.ReportStore using PostgreSQL.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a new ReportStore backed by the given pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

const reportCols = `id, tenant, kind, week_start, title, markdown, status, model,
	source_count, market_count, blob_path, created_at, updated_at, ready_at, published_at`

func scanReport(row pgx.Row) (domain.Report, error) {
	var r domain.Report
	var kind, status string
	err := row.Scan(&r.ID, &r.Tenant, &kind, &r.WeekStart, &r.Title, &r.Markdown, &status, &r.Model,
		&r.SourceCount, &r.MarketCount, &r.BlobPath, &r.CreatedAt, &r.UpdatedAt, &r.ReadyAt, &r.PublishedAt)
	if err != nil {
		return domain.Report{}, err
	}
	r.Kind = domain.ReportKind(kind)
	r.Status = domain.ReportStatus(status)
	r.WeekStart = r.WeekStart.UTC()
	return r, nil
}

// Create inserts a report. A second report for the same tenant, kind and week
// yields domain.ErrAlreadyExists.
func (s *ReportStore) Create(ctx context.Context, r domain.Report) error {
	const query = `INSERT INTO reports (` + reportCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Tenant, string(r.Kind), r.WeekStart, r.Title, r.Markdown, string(r.Status), r.Model,
		r.SourceCount, r.MarketCount, r.BlobPath, r.CreatedAt, r.UpdatedAt, r.ReadyAt, r.PublishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create report: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create report: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a report.
func (s *ReportStore) Update(ctx context.Context, r domain.Report) error {
	const query = `
		UPDATE reports SET
			title = $2, markdown = $3, status = $4, model = $5, source_count = $6,
			market_count = $7, blob_path = $8, updated_at = $9, ready_at = $10, published_at = $11
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, r.ID, r.Title, r.Markdown, string(r.Status), r.Model,
		r.SourceCount, r.MarketCount, r.BlobPath, r.UpdatedAt, r.ReadyAt, r.PublishedAt)
	if err != nil {
		return fmt.Errorf("postgres: update report %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update report %s: %w", r.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a report by id.
func (s *ReportStore) GetByID(ctx context.Context, id string) (domain.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return domain.Report{}, notFound(err, "get report "+id)
	}
	return r, nil
}

// GetByWeek retrieves the report for a tenant, kind and week.
func (s *ReportStore) GetByWeek(ctx context.Context, tenant string, kind domain.ReportKind, weekStart time.Time) (domain.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports
		WHERE tenant = $1 AND kind = $2 AND week_start = $3`, tenant, string(kind), weekStart)
	r, err := scanReport(row)
	if err != nil {
		return domain.Report{}, notFound(err, "get report by week")
	}
	return r, nil
}

// List returns reports matching f, newest week first.
func (s *ReportStore) List(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error) {
	w := &where{}
	if f.Tenant != "" {
		w.add("tenant = ?", f.Tenant)
	}
	if f.Kind != "" {
		w.add("kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	query := `SELECT ` + reportCols + ` FROM reports` + w.sql() +
		` ORDER BY week_start DESC, kind ASC` + w.page(f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list reports rows: %w", err)
	}
	return out, nil
}

// LatestPublished returns the most recent published report of a kind.
func (s *ReportStore) LatestPublished(ctx context.Context, tenant string, kind domain.ReportKind) (domain.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports
		WHERE tenant = $1 AND kind = $2 AND status = 'published'
		ORDER BY week_start DESC LIMIT 1`, tenant, string(kind))
	r, err := scanReport(row)
	if err != nil {
		return domain.Report{}, notFound(err, "latest published report")
	}
	return r, nil
}
