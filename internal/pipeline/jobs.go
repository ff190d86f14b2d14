package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/report"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

// Job names accepted by Trigger and the admin pipeline endpoint.
const (
	JobIngest    = "ingest"
	JobChainSync = "chain_sync"
	JobConfirm   = "confirm"
	JobReports   = "reports"
	JobAttention = "attention"
	JobArchive   = "archive"
)

// ChainSyncer mirrors on-chain pools into the market rows.
type ChainSyncer interface {
	SyncChain(ctx context.Context) (service.SyncResult, error)
}

// TradeConfirmer settles pending trades.
type TradeConfirmer interface {
	ConfirmPending(ctx context.Context) (service.ConfirmResult, error)
}

// ReportGenerator drafts a weekly report.
type ReportGenerator interface {
	Generate(ctx context.Context, tenant domain.Tenant, kind domain.ReportKind, weekOf time.Time) (domain.Report, error)
}

// AttentionRunner scores a tenant's categories.
type AttentionRunner interface {
	Run(ctx context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error)
}

// Schedules holds the cron expression of each job. An empty expression leaves
// the job manual-only.
type Schedules struct {
	Ingest    string
	ChainSync string
	Confirm   string
	Reports   string
	Attention string
	Archive   string
}

// Deps are the collaborators the standard jobs drive. A nil collaborator
// leaves its job unregistered.
type Deps struct {
	Ingester  *Ingester
	Markets   ChainSyncer
	Trades    TradeConfirmer
	Reports   ReportGenerator
	Attention AttentionRunner
	Archiver  *Archiver
	Tenants   []domain.Tenant
	Logger    *slog.Logger
	Now       func() time.Time
}

// StandardJobs builds the Augurion job set from deps.
func StandardJobs(deps Deps, s Schedules) []Job {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	var jobs []Job
	if deps.Ingester != nil {
		jobs = append(jobs, Job{Name: JobIngest, Schedule: s.Ingest, Run: deps.Ingester.Run})
	}
	if deps.Markets != nil {
		jobs = append(jobs, Job{Name: JobChainSync, Schedule: s.ChainSync, Run: func(ctx context.Context) error {
			_, err := deps.Markets.SyncChain(ctx)
			return err
		}})
	}
	if deps.Trades != nil {
		jobs = append(jobs, Job{Name: JobConfirm, Schedule: s.Confirm, Run: func(ctx context.Context) error {
			_, err := deps.Trades.ConfirmPending(ctx)
			return err
		}})
	}
	if deps.Reports != nil {
		jobs = append(jobs, Job{Name: JobReports, Schedule: s.Reports, Run: func(ctx context.Context) error {
			return generateReports(ctx, deps)
		}})
	}
	if deps.Attention != nil {
		jobs = append(jobs, Job{Name: JobAttention, Schedule: s.Attention, Run: func(ctx context.Context) error {
			return scoreAttention(ctx, deps)
		}})
	}
	if deps.Archiver != nil {
		jobs = append(jobs, Job{Name: JobArchive, Schedule: s.Archive, Run: deps.Archiver.Run})
	}
	return jobs
}

// generateReports drafts every tenant's reports for the last completed week.
// Weeks whose report is already past draft are left alone.
func generateReports(ctx context.Context, deps Deps) error {
	weekOf := report.WeekStart(deps.Now().UTC().AddDate(0, 0, -7))
	var errs []error
	for _, t := range deps.Tenants {
		for _, kind := range t.Reports() {
			r, err := deps.Reports.Generate(ctx, t, kind, weekOf)
			switch {
			case err == nil:
				deps.Logger.InfoContext(ctx, "pipeline: report drafted",
					slog.String("tenant", t.Slug),
					slog.String("kind", string(kind)),
					slog.String("report_id", r.ID),
				)
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrLockHeld):
				deps.Logger.InfoContext(ctx, "pipeline: report skipped",
					slog.String("tenant", t.Slug),
					slog.String("kind", string(kind)),
					slog.String("reason", err.Error()),
				)
			default:
				errs = append(errs, fmt.Errorf("%s/%s: %w", t.Slug, kind, err))
			}
		}
	}
	return errors.Join(errs...)
}

func scoreAttention(ctx context.Context, deps Deps) error {
	var errs []error
	for _, t := range deps.Tenants {
		est, err := deps.Attention.Run(ctx, t)
		if errors.Is(err, domain.ErrLLMUnavailable) {
			deps.Logger.WarnContext(ctx, "pipeline: attention skipped, no llm configured")
			return nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Slug, err))
			continue
		}
		deps.Logger.InfoContext(ctx, "pipeline: attention scored",
			slog.String("tenant", t.Slug),
			slog.Int("categories", len(est)),
		)
	}
	return errors.Join(errs...)
}
