package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Triggerer queues pipeline jobs.
type Triggerer interface {
	Trigger(job string) error
	Jobs() []string
}

// PipelineHandler serves pipeline trigger endpoints.
type PipelineHandler struct {
	logger    *slog.Logger
	triggerer Triggerer // nil when this process runs no worker
}

// NewPipelineHandler creates a PipelineHandler with the given logger.
func NewPipelineHandler(logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{logger: logger}
}

// WithTriggerer sets the worker that receives triggers.
func (h *PipelineHandler) WithTriggerer(t Triggerer) *PipelineHandler {
	h.triggerer = t
	return h
}

// TriggerJob enqueues one run of a job.
// POST /api/admin/pipeline/{job}
func (h *PipelineHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")
	if h.triggerer == nil {
		writeError(w, http.StatusServiceUnavailable, "no worker runs in this process")
		return
	}
	if err := h.triggerer.Trigger(job); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to trigger job")
		return
	}
	h.logger.InfoContext(r.Context(), "handler: pipeline trigger requested", slog.String("job", job))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"job":          job,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListJobs returns the jobs that can be triggered.
// GET /api/admin/pipeline
func (h *PipelineHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []string{}
	if h.triggerer != nil {
		jobs = h.triggerer.Jobs()
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
