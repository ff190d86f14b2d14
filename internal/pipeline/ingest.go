package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/feed"
)

// NewsFetcher pulls every configured feed.
type NewsFetcher interface {
	FetchAll(ctx context.Context) (feed.Result, error)
}

// NewsInserter persists fetched news.
type NewsInserter interface {
	InsertBatch(ctx context.Context, items []domain.NewsItem) (int64, error)
}

// Ingester fetches the configured feeds and stores any new items.
type Ingester struct {
	fetcher NewsFetcher
	news    NewsInserter
	logger  *slog.Logger
}

// NewIngester creates a new Ingester.
func NewIngester(fetcher NewsFetcher, news NewsInserter, logger *slog.Logger) *Ingester {
	return &Ingester{fetcher: fetcher, news: news, logger: logger}
}

// Run executes one ingest pass. Feeds that fail are skipped by the fetcher;
// the pass only errors when every feed failed or the insert did.
func (i *Ingester) Run(ctx context.Context) error {
	res, err := i.fetcher.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetching feeds: %w", err)
	}
	if res.Feeds > 0 && res.Failed == res.Feeds {
		return fmt.Errorf("all %d feeds failed", res.Feeds)
	}

	inserted, err := i.news.InsertBatch(ctx, res.Items)
	if err != nil {
		return fmt.Errorf("storing %d news items: %w", len(res.Items), err)
	}

	i.logger.InfoContext(ctx, "news ingest complete",
		slog.Int("feeds", res.Feeds),
		slog.Int("failed_feeds", res.Failed),
		slog.Int("fetched", len(res.Items)),
		slog.Int64("new", inserted),
	)
	return nil
}
