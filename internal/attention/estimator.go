package attention

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/llm"
)

const window = 7 * 24 * time.Hour

const systemPrompt = `You estimate public attention for topics covered by Augurion, a prediction market on African politics and sport.
Reply with one JSON object and nothing else:
{"attention": 0-100, "engagement": 0-100, "market_worthiness": 0-100, "rationale": "one or two sentences", "suggested_question": "a binary YES/NO market question"}
attention is how much coverage the topic gets. engagement is how strongly people react and discuss it.
market_worthiness is how well it suits a binary market that resolves within weeks.`

// reply is the JSON object the model returns.
type reply struct {
	Attention         float64 `json:"attention"`
	Engagement        float64 `json:"engagement"`
	MarketWorthiness  float64 `json:"market_worthiness"`
	Rationale         string  `json:"rationale"`
	SuggestedQuestion string  `json:"suggested_question"`
}

// Estimator asks the language model for per-category attention readings.
type Estimator struct {
	provider    llm.Provider
	news        domain.NewsStore
	weights     Weights
	concurrency int
	headlines   int
	logger      *slog.Logger
	now         func() time.Time
}

// EstimatorOptions tune an Estimator.
type EstimatorOptions struct {
	Weights     Weights
	Concurrency int
	// Headlines caps the headlines shown per category.
	Headlines int
}

// NewEstimator creates an Estimator. A nil provider makes every run fail with
// domain.ErrLLMUnavailable.
func NewEstimator(provider llm.Provider, news domain.NewsStore, opts EstimatorOptions, logger *slog.Logger) *Estimator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Headlines <= 0 {
		opts.Headlines = 12
	}
	return &Estimator{
		provider:    provider,
		news:        news,
		weights:     opts.Weights,
		concurrency: opts.Concurrency,
		headlines:   opts.Headlines,
		logger:      logger.With(slog.String("component", "attention_estimator")),
		now:         time.Now,
	}
}

// Estimate scores every category for tenant. An empty category list means
// every category that had news in the past week. Categories whose reply
// cannot be parsed are logged and skipped.
func (e *Estimator) Estimate(ctx context.Context, tenant string, categories []string) ([]domain.AttentionEstimate, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("attention: estimate: %w", domain.ErrLLMUnavailable)
	}
	now := e.now().UTC()
	since := now.Add(-window)

	counts, err := e.news.CountByCategorySince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("attention: count news: %w", err)
	}
	if len(categories) == 0 {
		for c := range counts {
			categories = append(categories, c)
		}
	}
	categories = append([]string(nil), categories...)
	sort.Strings(categories)

	var (
		mu  sync.Mutex
		out []domain.AttentionEstimate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, cat := range categories {
		g.Go(func() error {
			est, err := e.estimateOne(gctx, cat, counts[cat], since)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.logger.WarnContext(gctx, "category skipped",
					slog.String("tenant", tenant),
					slog.String("category", cat),
					slog.String("error", err.Error()),
				)
				return nil
			}
			est.ID = uuid.NewString()
			est.Tenant = tenant
			est.EstimatedAt = now
			mu.Lock()
			out = append(out, est)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("attention: estimate: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (e *Estimator) estimateOne(ctx context.Context, category string, count int, since time.Time) (domain.AttentionEstimate, error) {
	items, err := e.news.ListSince(ctx, since, []string{category}, e.headlines)
	if err != nil {
		return domain.AttentionEstimate{}, fmt.Errorf("list news: %w", err)
	}

	resp, err := e.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      Prompt(category, count, items),
		MaxTokens:   400,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return domain.AttentionEstimate{}, err
	}

	var r reply
	if err := llm.DecodeJSON(resp.Text, &r); err != nil {
		return domain.AttentionEstimate{}, err
	}
	model := resp.Model
	if model == "" {
		model = e.provider.Model()
	}
	return domain.AttentionEstimate{
		Category:          category,
		Attention:         clamp(r.Attention),
		Engagement:        clamp(r.Engagement),
		MarketWorthiness:  clamp(r.MarketWorthiness),
		Composite:         Score(r.Attention, r.Engagement, r.MarketWorthiness, e.weights),
		Rationale:         strings.TrimSpace(r.Rationale),
		SuggestedQuestion: strings.TrimSpace(r.SuggestedQuestion),
		NewsCount:         count,
		Model:             model,
	}, nil
}

// Prompt renders the user prompt for one category.
func Prompt(category string, count int, items []domain.NewsItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", category)
	fmt.Fprintf(&b, "News items in the past 7 days: %d\n\n", count)
	if len(items) == 0 {
		b.WriteString("No headlines.\n")
		return b.String()
	}
	b.WriteString("Recent headlines:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (%s)\n", it.Title, it.Source)
	}
	return b.String()
}
