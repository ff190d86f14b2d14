package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SubscriberService records newsletter sign-ups. Nothing is sent from here.
type SubscriberService struct {
	subscribers domain.SubscriberStore
	now         func() time.Time
}

// NewSubscriberService creates a SubscriberService.
func NewSubscriberService(subscribers domain.SubscriberStore) *SubscriberService {
	return &SubscriberService{subscribers: subscribers, now: time.Now}
}

// Subscribe stores email for tenant. Display-name forms such as
// "Thabo <t@example.com>" are rejected; the address is stored lower-cased.
func (s *SubscriberService) Subscribe(ctx context.Context, tenant domain.Tenant, email, source string) (domain.Subscriber, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" || len(email) > 254 {
		return domain.Subscriber{}, fmt.Errorf("subscriber_service: invalid email: %w", domain.ErrInvalidInput)
	}
	if !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
		return domain.Subscriber{}, fmt.Errorf("subscriber_service: email domain has no dot: %w", domain.ErrInvalidInput)
	}

	sub := domain.Subscriber{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(email),
		Tenant:    tenant.Slug,
		Source:    strings.TrimSpace(source),
		CreatedAt: s.now().UTC(),
	}
	if err := s.subscribers.Create(ctx, sub); err != nil {
		return domain.Subscriber{}, fmt.Errorf("subscriber_service: create: %w", err)
	}
	return sub, nil
}

// Count returns the number of subscribers of tenant.
func (s *SubscriberService) Count(ctx context.Context, tenant string) (int64, error) {
	n, err := s.subscribers.Count(ctx, tenant)
	if err != nil {
		return 0, fmt.Errorf("subscriber_service: count: %w", err)
	}
	return n, nil
}
