package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/notify"
)

// Notifier delivers editorial alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ServiceOptions tune the workflow.
type ServiceOptions struct {
	BlobPrefix string
	AutoReady  bool
	LockTTL    time.Duration
}

// Service runs the draft -> ready_to_publish -> published workflow.
type Service struct {
	reports  domain.ReportStore
	gatherer *Gatherer
	gen      *Generator
	blobs    domain.BlobWriter
	locks    domain.LockManager
	bus      domain.EventEmitter
	notifier Notifier
	audit    domain.AuditStore
	opts     ServiceOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a report Service.
func NewService(
	reports domain.ReportStore,
	gatherer *Gatherer,
	gen *Generator,
	blobs domain.BlobWriter,
	locks domain.LockManager,
	bus domain.EventEmitter,
	notifier Notifier,
	audit domain.AuditStore,
	opts ServiceOptions,
	logger *slog.Logger,
) *Service {
	if opts.BlobPrefix == "" {
		opts.BlobPrefix = "reports"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &Service{
		reports:  reports,
		gatherer: gatherer,
		gen:      gen,
		blobs:    blobs,
		locks:    locks,
		bus:      bus,
		notifier: notifier,
		audit:    audit,
		opts:     opts,
		logger:   logger.With(slog.String("component", "report_service")),
		now:      time.Now,
	}
}

// BlobPath is the object key of a published report.
func (s *Service) BlobPath(r domain.Report) string {
	return fmt.Sprintf("%s/%s/%s/%s.md", s.opts.BlobPrefix, r.Tenant, r.Kind, r.WeekStart.Format("2006-01-02"))
}

// Generate drafts the report of kind for tenant and the week containing
// weekOf. An existing draft is regenerated in place; a report that is
// already ready or published is left alone with ErrInvalidTransition.
func (s *Service) Generate(ctx context.Context, tenant domain.Tenant, kind domain.ReportKind, weekOf time.Time) (domain.Report, error) {
	if !kind.Valid() {
		return domain.Report{}, fmt.Errorf("report_service: kind %q: %w", kind, domain.ErrInvalidInput)
	}
	if !tenant.HasReport(kind) {
		return domain.Report{}, fmt.Errorf("report_service: tenant %s has no %s report: %w", tenant.Slug, kind, domain.ErrInvalidInput)
	}
	weekStart := WeekStart(weekOf)

	lockKey := fmt.Sprintf("report:%s:%s:%s", tenant.Slug, kind, weekStart.Format("2006-01-02"))
	unlock, err := s.locks.Acquire(ctx, lockKey, s.opts.LockTTL)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: lock %s: %w", lockKey, err)
	}
	defer unlock()

	existing, err := s.reports.GetByWeek(ctx, tenant.Slug, kind, weekStart)
	found := err == nil
	switch {
	case found && existing.Status != domain.ReportDraft:
		return domain.Report{}, fmt.Errorf("report_service: %s report for %s is %s: %w",
			kind, weekStart.Format("2006-01-02"), existing.Status, domain.ErrInvalidTransition)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return domain.Report{}, fmt.Errorf("report_service: lookup: %w", err)
	}

	in, err := s.gatherer.Gather(ctx, tenant, kind, weekStart)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: %w", err)
	}
	draft := s.gen.Write(ctx, in)

	now := s.now().UTC()
	r := existing
	if !found {
		r = domain.Report{
			ID:        uuid.NewString(),
			Tenant:    tenant.Slug,
			Kind:      kind,
			WeekStart: weekStart,
			Status:    domain.ReportDraft,
			CreatedAt: now,
		}
	}
	r.Title = draft.Title
	r.Markdown = draft.Markdown
	r.Model = draft.Model
	r.SourceCount = len(in.News)
	r.MarketCount = len(in.Markets)
	r.UpdatedAt = now

	if found {
		err = s.reports.Update(ctx, r)
	} else {
		err = s.reports.Create(ctx, r)
	}
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: save: %w", err)
	}

	s.logger.InfoContext(ctx, "report drafted",
		slog.String("id", r.ID),
		slog.String("tenant", r.Tenant),
		slog.String("kind", string(r.Kind)),
		slog.String("week", weekStart.Format("2006-01-02")),
		slog.String("model", r.Model),
		slog.Bool("regenerated", found),
	)
	s.auditLog(ctx, "report_generated", r)

	if s.opts.AutoReady {
		return s.MarkReady(ctx, r.ID)
	}
	return r, nil
}

// Edit replaces the title and body of a report. Editing a ready report sends
// it back to draft. Published reports are immutable.
func (s *Service) Edit(ctx context.Context, id, title, markdown string) (domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, err)
	}
	switch r.Status {
	case domain.ReportDraft:
	case domain.ReportReadyToPublish:
		r.Status = domain.ReportDraft
		r.ReadyAt = nil
	default:
		return domain.Report{}, fmt.Errorf("report_service: edit %s report: %w", r.Status, domain.ErrInvalidTransition)
	}

	if t := strings.TrimSpace(title); t != "" {
		r.Title = t
	}
	r.Markdown = markdown
	r.UpdatedAt = s.now().UTC()
	if err := s.reports.Update(ctx, r); err != nil {
		return domain.Report{}, fmt.Errorf("report_service: update %s: %w", id, err)
	}
	s.auditLog(ctx, "report_edited", r)
	return r, nil
}

// MarkReady moves a draft with content to ready_to_publish.
func (s *Service) MarkReady(ctx context.Context, id string) (domain.Report, error) {
	r, err := s.transition(ctx, id, domain.ReportReadyToPublish)
	if err != nil {
		return domain.Report{}, err
	}
	s.notify(ctx, notify.EventReportReady, "Report ready for review",
		fmt.Sprintf("%s (%s) is ready to publish.", r.Title, r.Tenant))
	return r, nil
}

// Reject sends a ready report back to draft.
func (s *Service) Reject(ctx context.Context, id string) (domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, err)
	}
	if r.Status != domain.ReportReadyToPublish {
		return domain.Report{}, fmt.Errorf("report_service: reject %s report: %w", r.Status, domain.ErrInvalidTransition)
	}
	return s.transition(ctx, id, domain.ReportDraft)
}

// Publish uploads a ready report to object storage and then marks it
// published. A failed upload leaves the report ready.
func (s *Service) Publish(ctx context.Context, id string) (domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, err)
	}
	if !r.Status.CanTransition(domain.ReportPublished) {
		return domain.Report{}, fmt.Errorf("report_service: publish %s report: %w", r.Status, domain.ErrInvalidTransition)
	}

	path := s.BlobPath(r)
	if err := s.blobs.Put(ctx, path, strings.NewReader(r.Markdown), "text/markdown; charset=utf-8"); err != nil {
		return domain.Report{}, fmt.Errorf("report_service: upload %s: %w", path, err)
	}

	now := s.now().UTC()
	r.Status = domain.ReportPublished
	r.BlobPath = path
	r.PublishedAt = &now
	r.UpdatedAt = now
	if err := s.reports.Update(ctx, r); err != nil {
		return domain.Report{}, fmt.Errorf("report_service: update %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "report published",
		slog.String("id", r.ID),
		slog.String("tenant", r.Tenant),
		slog.String("path", path),
	)
	if err := s.bus.Emit(ctx, domain.ChannelReport, "report_published", domain.ForTenant(r.Tenant), summary(r)); err != nil {
		s.logger.WarnContext(ctx, "emit failed", slog.String("error", err.Error()))
	}
	s.notify(ctx, notify.EventReportPublished, "Report published",
		fmt.Sprintf("%s is live for %s.", r.Title, r.Tenant))
	s.auditLog(ctx, "report_published", r)
	return r, nil
}

// Get returns any report by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, err)
	}
	return r, nil
}

// GetPublished returns a published report of tenant. Anything else reads as
// not found.
func (s *Service) GetPublished(ctx context.Context, tenant, id string) (domain.Report, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	if r.Status != domain.ReportPublished || r.Tenant != tenant {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// List returns reports matching f in any status.
func (s *Service) List(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error) {
	reports, err := s.reports.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("report_service: list: %w", err)
	}
	return reports, nil
}

// ListPublished returns a tenant's published reports.
func (s *Service) ListPublished(ctx context.Context, tenant string, kind domain.ReportKind, limit, offset int) ([]domain.Report, error) {
	return s.List(ctx, domain.ReportFilter{
		Tenant: tenant,
		Kind:   kind,
		Status: domain.ReportPublished,
		Limit:  limit,
		Offset: offset,
	})
}

// Latest returns the newest published report of kind.
func (s *Service) Latest(ctx context.Context, tenant string, kind domain.ReportKind) (domain.Report, error) {
	r, err := s.reports.LatestPublished(ctx, tenant, kind)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: latest %s: %w", kind, err)
	}
	return r, nil
}

func (s *Service) transition(ctx context.Context, id string, next domain.ReportStatus) (domain.Report, error) {
	r, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report_service: get %s: %w", id, err)
	}
	if !r.Status.CanTransition(next) {
		return domain.Report{}, fmt.Errorf("report_service: %s -> %s: %w", r.Status, next, domain.ErrInvalidTransition)
	}

	now := s.now().UTC()
	switch next {
	case domain.ReportReadyToPublish:
		if strings.TrimSpace(r.Markdown) == "" {
			return domain.Report{}, fmt.Errorf("report_service: report %s is empty: %w", id, domain.ErrInvalidInput)
		}
		r.ReadyAt = &now
	case domain.ReportDraft:
		r.ReadyAt = nil
	}
	r.Status = next
	r.UpdatedAt = now
	if err := s.reports.Update(ctx, r); err != nil {
		return domain.Report{}, fmt.Errorf("report_service: update %s: %w", id, err)
	}
	s.auditLog(ctx, "report_"+string(next), r)
	return r, nil
}

func (s *Service) notify(ctx context.Context, event, title, msg string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) auditLog(ctx context.Context, event string, r domain.Report) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, map[string]any{
		"report_id": r.ID,
		"tenant":    r.Tenant,
		"kind":      string(r.Kind),
		"week":      r.WeekStart.Format("2006-01-02"),
		"status":    string(r.Status),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
}

func summary(r domain.Report) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"kind":       r.Kind,
		"title":      r.Title,
		"week_start": r.WeekStart.Format("2006-01-02"),
		"blob_path":  r.BlobPath,
	}
}
