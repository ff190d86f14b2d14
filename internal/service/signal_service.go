package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SignalInput is the editable part of a fragility signal.
type SignalInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Level       int                `json:"level"`
	Trend       domain.SignalTrend `json:"trend"`
	Source      string             `json:"source"`
}

// SignalService manages fragility signals.
type SignalService struct {
	signals domain.SignalStore
	bus     domain.EventEmitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewSignalService creates a SignalService.
func NewSignalService(signals domain.SignalStore, bus domain.EventEmitter, logger *slog.Logger) *SignalService {
	return &SignalService{signals: signals, bus: bus, logger: logger, now: time.Now}
}

// Upsert creates or replaces the signal at slug. Level is clamped to 0-100
// and an empty trend means stable.
func (s *SignalService) Upsert(ctx context.Context, slug string, in SignalInput) (domain.FragilitySignal, error) {
	slug = Slugify(slug)
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Trend == "" {
		in.Trend = domain.TrendStable
	}

	var errs []string
	if slug == "" {
		errs = append(errs, "slug is required")
	}
	if in.Name == "" {
		errs = append(errs, "name is required")
	}
	if in.Category == "" {
		errs = append(errs, "category is required")
	}
	if !in.Trend.Valid() {
		errs = append(errs, "trend must be rising, falling or stable")
	}
	if len(errs) > 0 {
		return domain.FragilitySignal{}, fmt.Errorf("signal_service: %s: %w", strings.Join(errs, "; "), domain.ErrInvalidInput)
	}

	sig := domain.FragilitySignal{
		Slug:        slug,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Level:       min(max(in.Level, 0), 100),
		Trend:       in.Trend,
		Source:      strings.TrimSpace(in.Source),
		UpdatedAt:   s.now().UTC(),
	}
	existing, err := s.signals.GetBySlug(ctx, slug)
	switch {
	case err == nil:
		sig.ID = existing.ID
	case errors.Is(err, domain.ErrNotFound):
		sig.ID = uuid.NewString()
	default:
		return domain.FragilitySignal{}, fmt.Errorf("signal_service: get %s: %w", slug, err)
	}

	saved, err := s.signals.Upsert(ctx, sig)
	if err != nil {
		return domain.FragilitySignal{}, fmt.Errorf("signal_service: upsert %s: %w", slug, err)
	}
	s.emit(ctx, "signal_updated", saved)
	return saved, nil
}

// Get returns one signal.
func (s *SignalService) Get(ctx context.Context, slug string) (domain.FragilitySignal, error) {
	sig, err := s.signals.GetBySlug(ctx, slug)
	if err != nil {
		return domain.FragilitySignal{}, fmt.Errorf("signal_service: get %s: %w", slug, err)
	}
	return sig, nil
}

// List returns the signals visible to tenant, optionally narrowed to one
// category.
func (s *SignalService) List(ctx context.Context, tenant domain.Tenant, category string) ([]domain.FragilitySignal, error) {
	cats := tenant.Categories
	if category != "" {
		if !tenant.AllowsCategory(category) {
			return []domain.FragilitySignal{}, nil
		}
		cats = []string{category}
	}
	sigs, err := s.signals.List(ctx, cats)
	if err != nil {
		return nil, fmt.Errorf("signal_service: list: %w", err)
	}
	if sigs == nil {
		sigs = []domain.FragilitySignal{}
	}
	return sigs, nil
}

// Delete removes a signal.
func (s *SignalService) Delete(ctx context.Context, slug string) error {
	sig, err := s.signals.GetBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("signal_service: get %s: %w", slug, err)
	}
	if err := s.signals.Delete(ctx, slug); err != nil {
		return fmt.Errorf("signal_service: delete %s: %w", slug, err)
	}
	s.emit(ctx, "signal_deleted", sig)
	return nil
}

func (s *SignalService) emit(ctx context.Context, eventType string, sig domain.FragilitySignal) {
	if err := s.bus.Emit(ctx, domain.ChannelSignal, eventType, domain.ForCategory(sig.Category), sig); err != nil {
		s.logger.WarnContext(ctx, "signal_service: emit failed",
			slog.String("slug", sig.Slug),
			slog.String("error", err.Error()),
		)
	}
}
