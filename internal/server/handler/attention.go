package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// AttentionService is the attention surface the handler needs.
type AttentionService interface {
	Run(ctx context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error)
	Latest(ctx context.Context, tenant string) ([]domain.AttentionEstimate, error)
	History(ctx context.Context, tenant, category string, limit int) ([]domain.AttentionEstimate, error)
	Recommendations(ctx context.Context, tenant domain.Tenant) ([]domain.AttentionEstimate, error)
}

// AttentionHandler serves attention estimates to admins.
type AttentionHandler struct {
	attention AttentionService
	logger    *slog.Logger
}

// NewAttentionHandler creates an AttentionHandler.
func NewAttentionHandler(attention AttentionService, logger *slog.Logger) *AttentionHandler {
	return &AttentionHandler{attention: attention, logger: logger}
}

// Latest returns the newest estimate per category, or one category's history
// when ?category= is given.
// GET /api/admin/attention
func (h *AttentionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(r)
	var (
		est []domain.AttentionEstimate
		err error
	)
	if c := r.URL.Query().Get("category"); c != "" {
		est, err = h.attention.History(r.Context(), tenant.Slug, c, parseListOpts(r).Limit)
	} else {
		est, err = h.attention.Latest(r.Context(), tenant.Slug)
	}
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load attention")
		return
	}
	if est == nil {
		est = []domain.AttentionEstimate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": est})
}

// Recommendations returns categories worth a new market.
// GET /api/admin/attention/recommendations
func (h *AttentionHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.attention.Recommendations(r.Context(), tenantOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load recommendations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

// Run scores the tenant's categories now.
// POST /api/admin/attention/run
func (h *AttentionHandler) Run(w http.ResponseWriter, r *http.Request) {
	est, err := h.attention.Run(r.Context(), tenantOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "attention run failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estimates": est})
}
