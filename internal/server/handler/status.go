package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// OpenCounter counts open markets.
type OpenCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	mode    string
	tenants int
	markets OpenCounter
	started time.Time
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler for a process running in mode.
func NewStatusHandler(mode string, tenants int, markets OpenCounter, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{mode: mode, tenants: tenants, markets: markets, started: time.Now(), logger: logger}
}

// GetStatus responds with the run mode, uptime and open market count.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	open, err := h.markets.CountOpen(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to count markets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"tenants":        h.tenants,
		"open_markets":   open,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
