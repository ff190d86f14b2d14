package attention

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/notify"
)

// Notifier delivers recommendation alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Service runs estimation for tenants and serves the results.
type Service struct {
	estimator *Estimator
	store     domain.AttentionStore
	markets   domain.MarketStore
	bus       domain.EventEmitter
	notifier  Notifier
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewService creates an attention Service.
func NewService(
	estimator *Estimator,
	store domain.AttentionStore,
	markets domain.MarketStore,
	bus domain.EventEmitter,
	notifier Notifier,
	threshold float64,
	limit int,
	logger *slog.Logger,
) *Service {
	return &Service{
		estimator: estimator,
		store:     store,
		markets:   markets,
		bus:       bus,
		notifier:  notifier,
		threshold: threshold,
		limit:     limit,
		logger:    logger.With(slog.String("component", "attention_service")),
	}
}

// Run estimates every category of tenant, stores the readings and announces
// the resulting recommendations.
func (s *Service) Run(ctx context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error) {
	estimates, err := s.estimator.Estimate(ctx, tenant.Slug, tenant.Categories)
	if err != nil {
		return nil, fmt.Errorf("attention_service: %w", err)
	}
	if len(estimates) == 0 {
		s.logger.InfoContext(ctx, "no estimates produced", slog.String("tenant", tenant.Slug))
		return nil, nil
	}
	if err := s.store.InsertBatch(ctx, estimates); err != nil {
		return nil, fmt.Errorf("attention_service: store: %w", err)
	}

	recs, err := s.recommend(ctx, tenant, estimates)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "attention estimated",
		slog.String("tenant", tenant.Slug),
		slog.Int("categories", len(estimates)),
		slog.Int("recommendations", len(recs)),
	)

	if err := s.bus.Emit(ctx, domain.ChannelAttention, "attention_estimated", domain.ForTenant(tenant.Slug), map[string]any{
		"estimates":       estimates,
		"recommendations": recs,
	}); err != nil {
		s.logger.WarnContext(ctx, "emit failed", slog.String("error", err.Error()))
	}
	if len(recs) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, notify.EventRecommendation,
			fmt.Sprintf("Market ideas for %s", tenant.Name), formatRecommendations(recs)); err != nil {
			s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
	return estimates, nil
}

// Latest returns the newest estimate per category.
func (s *Service) Latest(ctx context.Context, tenant string) ([]domain.AttentionEstimate, error) {
	out, err := s.store.Latest(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("attention_service: latest: %w", err)
	}
	return out, nil
}

// History returns past readings of one category, newest first.
func (s *Service) History(ctx context.Context, tenant, category string, limit int) ([]domain.AttentionEstimate, error) {
	out, err := s.store.History(ctx, tenant, category, limit)
	if err != nil {
		return nil, fmt.Errorf("attention_service: history: %w", err)
	}
	return out, nil
}

// Recommendations returns the current recommendations for tenant.
func (s *Service) Recommendations(ctx context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error) {
	latest, err := s.Latest(ctx, tenant.Slug)
	if err != nil {
		return nil, err
	}
	return s.recommend(ctx, tenant, latest)
}

func (s *Service) recommend(ctx context.Context, tenant domain.Tenant, estimates []domain.AttentionEstimate) ([]domain.AttentionEstimate, error) {
	open, err := s.markets.List(ctx, domain.MarketFilter{
		Categories: tenant.Categories,
		Statuses:   []domain.MarketStatus{domain.MarketStatusOpen},
	})
	if err != nil {
		return nil, fmt.Errorf("attention_service: list open markets: %w", err)
	}
	byCategory := make(map[string]int)
	for _, m := range open {
		byCategory[m.Category]++
	}
	return Recommend(estimates, byCategory, s.threshold, s.limit), nil
}

func formatRecommendations(recs []domain.AttentionEstimate) string {
	var b strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&b, "%s: %.1f", r.Category, r.Composite)
		if r.SuggestedQuestion != "" {
			fmt.Fprintf(&b, " (%s)", r.SuggestedQuestion)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
