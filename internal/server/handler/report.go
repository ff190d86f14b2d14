package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// ReportService is the report workflow surface the handler needs.
type ReportService interface {
	Generate(ctx context.Context, tenant domain.Tenant, kind domain.ReportKind, weekOf time.Time) (domain.Report, error)
	Edit(ctx context.Context, id, title, markdown string) (domain.Report, error)
	MarkReady(ctx context.Context, id string) (domain.Report, error)
	Reject(ctx context.Context, id string) (domain.Report, error)
	Publish(ctx context.Context, id string) (domain.Report, error)
	Get(ctx context.Context, id string) (domain.Report, error)
	GetPublished(ctx context.Context, tenant, id string) (domain.Report, error)
	List(ctx context.Context, f domain.ReportFilter) ([]domain.Report, error)
	ListPublished(ctx context.Context, tenant string, kind domain.ReportKind, limit, offset int) ([]domain.Report, error)
	Latest(ctx context.Context, tenant string, kind domain.ReportKind) (domain.Report, error)
}

// ReportHandler serves weekly reports to readers and editors.
type ReportHandler struct {
	reports ReportService
	logger  *slog.Logger
	now     func() time.Time
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger, now: time.Now}
}

func parseKind(r *http.Request, required bool) (domain.ReportKind, bool) {
	k := domain.ReportKind(r.URL.Query().Get("kind"))
	if k == "" {
		return "", !required
	}
	return k, k.Valid()
}

// reportSummary omits the markdown body from list responses.
type reportSummary struct {
	ID          string              `json:"id"`
	Tenant      string              `json:"tenant"`
	Kind        domain.ReportKind   `json:"kind"`
	WeekStart   time.Time           `json:"week_start"`
	Title       string              `json:"title"`
	Status      domain.ReportStatus `json:"status"`
	Model       string              `json:"model"`
	UpdatedAt   time.Time           `json:"updated_at"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
}

func summarize(rs []domain.Report) []reportSummary {
	out := make([]reportSummary, len(rs))
	for i, r := range rs {
		out[i] = reportSummary{
			ID: r.ID, Tenant: r.Tenant, Kind: r.Kind, WeekStart: r.WeekStart, Title: r.Title,
			Status: r.Status, Model: r.Model, UpdatedAt: r.UpdatedAt, PublishedAt: r.PublishedAt,
		}
	}
	return out
}

// ListPublished returns the tenant's published reports.
// GET /api/reports?kind=trader_pulse
func (h *ReportHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r, false)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown report kind")
		return
	}
	opts := parseListOpts(r)
	rs, err := h.reports.ListPublished(r.Context(), tenantOf(r).Slug, kind, opts.Limit, opts.Offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, listResponse[reportSummary]{Items: summarize(rs), Limit: opts.Limit, Offset: opts.Offset})
}

// Latest returns the newest published report of a kind.
// GET /api/reports/latest?kind=executive_brief
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r, true)
	if !ok {
		writeError(w, http.StatusBadRequest, "kind must be trader_pulse or executive_brief")
		return
	}
	rep, err := h.reports.Latest(r.Context(), tenantOf(r).Slug, kind)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GetPublished returns one published report.
// GET /api/reports/{id}
func (h *ReportHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.GetPublished(r.Context(), tenantOf(r).Slug, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AdminList returns the tenant's reports in any status.
// GET /api/admin/reports?status=draft&kind=trader_pulse
func (h *ReportHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(r, false)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown report kind")
		return
	}
	status := domain.ReportStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown report status")
		return
	}
	opts := parseListOpts(r)
	rs, err := h.reports.List(r.Context(), domain.ReportFilter{
		Tenant: tenantOf(r).Slug,
		Kind:   kind,
		Status: status,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, listResponse[reportSummary]{Items: summarize(rs), Limit: opts.Limit, Offset: opts.Offset})
}

// Generate drafts a report for the tenant. week_of defaults to the current
// week.
// POST /api/admin/reports/generate {"kind":"trader_pulse","week_of":"2026-03-02"}
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind   domain.ReportKind `json:"kind"`
		WeekOf string            `json:"week_of"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	weekOf := h.now().UTC()
	if body.WeekOf != "" {
		t, err := time.Parse(time.DateOnly, body.WeekOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "week_of must be YYYY-MM-DD")
			return
		}
		weekOf = t
	}
	rep, err := h.reports.Generate(r.Context(), tenantOf(r), body.Kind, weekOf)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to generate report")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

// AdminGet returns a report in any status.
// GET /api/admin/reports/{id}
func (h *ReportHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Edit replaces a report's title and markdown.
// PUT /api/admin/reports/{id}
func (h *ReportHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title    string `json:"title"`
		Markdown string `json:"markdown"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	rep, err := h.reports.Edit(r.Context(), r.PathValue("id"), body.Title, body.Markdown)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to edit report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// MarkReady moves a draft to ready-to-publish.
// POST /api/admin/reports/{id}/ready
func (h *ReportHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.reports.MarkReady, "failed to mark report ready")
}

// Reject sends a ready report back to draft.
// POST /api/admin/reports/{id}/reject
func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.reports.Reject, "failed to reject report")
}

// Publish uploads and publishes a ready report.
// POST /api/admin/reports/{id}/publish
func (h *ReportHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.reports.Publish, "failed to publish report")
}

func (h *ReportHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (domain.Report, error), msg string) {
	rep, err := fn(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msg)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
