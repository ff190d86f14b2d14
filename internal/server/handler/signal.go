package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

// SignalService is the fragility signal surface the handler needs.
type SignalService interface {
	Get(ctx context.Context, slug string) (domain.FragilitySignal, error)
	List(ctx context.Context, tenant domain.Tenant, category string) ([]domain.FragilitySignal, error)
	Upsert(ctx context.Context, slug string, in service.SignalInput) (domain.FragilitySignal, error)
	Delete(ctx context.Context, slug string) error
}

// SignalHandler serves fragility signals.
type SignalHandler struct {
	signals SignalService
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalService, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, logger: logger}
}

// List returns the tenant's signals.
// GET /api/signals?category=energy
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	sigs, err := h.signals.List(r.Context(), tenantOf(r), category)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list signals")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": sigs})
}

// Get returns one signal of the tenant's categories.
// GET /api/signals/{slug}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	sig, err := h.signals.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get signal")
		return
	}
	if !tenantOf(r).AllowsCategory(sig.Category) {
		writeError(w, http.StatusNotFound, "signal not found")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// Upsert creates or replaces a signal.
// PUT /api/admin/signals/{slug}
func (h *SignalHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var in service.SignalInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	sig, err := h.signals.Upsert(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to save signal")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// Delete removes a signal.
// DELETE /api/admin/signals/{slug}
func (h *SignalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.signals.Delete(r.Context(), r.PathValue("slug")); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete signal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
