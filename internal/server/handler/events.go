package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// EventReader reads the durable event stream.
type EventReader interface {
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error)
}

// EventsHandler pages through recent bus events for the admin dashboard.
type EventsHandler struct {
	events EventReader
	stream string
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler reading stream.
func NewEventsHandler(events EventReader, stream string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, stream: stream, logger: logger}
}

type streamEvent struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// List returns events after the given stream id.
// GET /api/admin/events?after=0&limit=100
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	if !validStreamID(after) {
		writeServiceError(w, r, h.logger,
			fmt.Errorf("after %q is not a stream id: %w", after, domain.ErrInvalidInput), "invalid stream id")
		return
	}
	opts := parseListOpts(r)

	msgs, err := h.events.StreamRead(r.Context(), h.stream, after, opts.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to read events")
		return
	}

	out := make([]streamEvent, 0, len(msgs))
	next := after
	for _, m := range msgs {
		next = m.ID
		if !json.Valid(m.Payload) {
			continue
		}
		out = append(out, streamEvent{ID: m.ID, Event: m.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out, "next": next})
}

// validStreamID accepts "<ms>" or "<ms>-<seq>" with decimal parts.
func validStreamID(id string) bool {
	ms, seq, hasSeq := strings.Cut(id, "-")
	if _, err := strconv.ParseUint(ms, 10, 64); err != nil {
		return false
	}
	if hasSeq {
		if _, err := strconv.ParseUint(seq, 10, 64); err != nil {
			return false
		}
	}
	return true
}
