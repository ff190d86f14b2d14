package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// SubscriberService records newsletter sign-ups.
type SubscriberService interface {
	Subscribe(ctx context.Context, tenant domain.Tenant, email, source string) (domain.Subscriber, error)
	Count(ctx context.Context, tenant string) (int64, error)
}

// SubscribeHandler serves newsletter sign-up.
type SubscribeHandler struct {
	subscribers SubscriberService
	logger      *slog.Logger
}

// NewSubscribeHandler creates a SubscribeHandler.
func NewSubscribeHandler(subscribers SubscriberService, logger *slog.Logger) *SubscribeHandler {
	return &SubscribeHandler{subscribers: subscribers, logger: logger}
}

// Subscribe stores an email address for the tenant's newsletter.
// POST /api/subscribe {"email":"...","source":"footer"}
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email  string `json:"email"`
		Source string `json:"source"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	if _, err := h.subscribers.Subscribe(r.Context(), tenantOf(r), body.Email, body.Source); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// Count reports how many addresses signed up for the tenant.
// GET /api/admin/subscribers
func (h *SubscribeHandler) Count(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(r).Slug
	n, err := h.subscribers.Count(r.Context(), tenant)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to count subscribers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenant": tenant, "count": n})
}
