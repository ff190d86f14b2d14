// Package feed ingests RSS and Atom news feeds into categorized news items.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Result summarizes one fetch run.
type Result struct {
	Items  []domain.NewsItem
	Feeds  int
	Failed int
}

// Fetcher pulls every configured feed with bounded concurrency. A failing
// feed is logged and counted, never fatal.
type Fetcher struct {
	sources     []config.FeedSource
	client      *http.Client
	categorizer *Categorizer
	concurrency int
	timeout     time.Duration
	maxAge      time.Duration
	userAgent   string
	logger      *slog.Logger
	now         func() time.Time
}

// NewFetcher creates a Fetcher from the feeds config.
func NewFetcher(cfg config.FeedsConfig, categorizer *Categorizer, logger *slog.Logger) *Fetcher {
	if categorizer == nil {
		categorizer = NewCategorizer(nil)
	}
	return &Fetcher{
		sources:     cfg.Sources,
		client:      &http.Client{},
		categorizer: categorizer,
		concurrency: max(cfg.Concurrency, 1),
		timeout:     cfg.Timeout.Duration,
		maxAge:      cfg.MaxAge.Duration,
		userAgent:   cfg.UserAgent,
		logger:      logger.With(slog.String("component", "feed_fetcher")),
		now:         time.Now,
	}
}

// FetchAll fetches, normalizes and categorizes every source.
func (f *Fetcher) FetchAll(ctx context.Context) (Result, error) {
	res := Result{Feeds: len(f.sources)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, src := range f.sources {
		g.Go(func() error {
			items, err := f.fetchOne(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				f.logger.WarnContext(gctx, "feed failed",
					slog.String("url", src.URL),
					slog.String("error", err.Error()),
				)
				return nil
			}
			res.Items = append(res.Items, items...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, src config.FeedSource) ([]domain.NewsItem, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: get %s: %w", src.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: get %s: status %d", src.URL, resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", src.URL, err)
	}

	source := src.Name
	if source == "" {
		source = parsed.Title
	}
	now := f.now().UTC()
	var cutoff time.Time
	if f.maxAge > 0 {
		cutoff = now.Add(-f.maxAge)
	}

	items := make([]domain.NewsItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		n, ok := Normalize(src.URL, source, it, now)
		if !ok || (!cutoff.IsZero() && n.PublishedAt.Before(cutoff)) {
			continue
		}
		n.Categories = f.categorizer.Categorize(n.Title+" "+n.Summary+" "+joinCats(it.Categories), src.Categories)
		items = append(items, n)
	}
	return items, nil
}

func joinCats(cats []string) string {
	out := ""
	for _, c := range cats {
		out += " " + c
	}
	return out
}
