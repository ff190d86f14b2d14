package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Archiver moves old news and snapshots from the database to S3 cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Run executes a single archive run. Rows older than retentionDays are
// archived; snapshots are kept as long as news.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	newsArchived, err := a.blobArchiver.ArchiveNews(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving news before %v: %w", cutoff, err)
	}

	snapsArchived, err := a.blobArchiver.ArchiveSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving snapshots before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("news_archived", newsArchived),
		slog.Int64("snapshots_archived", snapsArchived),
	)
	return nil
}
