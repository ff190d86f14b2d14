package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetForTenant(ctx context.Context, tenant domain.Tenant, slug string) (domain.Market, error)
	List(ctx context.Context, tenant domain.Tenant, f domain.MarketFilter) ([]domain.Market, int64, error)
	History(ctx context.Context, tenant domain.Tenant, slug string, days int) ([]domain.MarketSnapshot, error)
	Create(ctx context.Context, tenant domain.Tenant, in service.MarketInput) (domain.Market, error)
	Update(ctx context.Context, tenant domain.Tenant, id string, in service.MarketInput) (domain.Market, error)
	SetStatus(ctx context.Context, id string, next domain.MarketStatus) (domain.Market, error)
	Resolve(ctx context.Context, id string, outcome domain.Outcome) (domain.Market, error)
}

// UniverseService lays out markets for the star-field view.
type UniverseService interface {
	Layout(ctx context.Context, tenant domain.Tenant) (service.Universe, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets  MarketService
	universe UniverseService
	logger   *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, universe UniverseService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets:  markets,
		universe: universe,
		logger:   logger,
	}
}

var publicStatuses = map[domain.MarketStatus]bool{
	domain.MarketStatusOpen:     true,
	domain.MarketStatusClosed:   true,
	domain.MarketStatusResolved: true,
}

// ListMarkets returns the tenant's markets with pagination.
// GET /api/markets?category=energy&status=open,closed&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	q := r.URL.Query()

	f := domain.MarketFilter{Limit: opts.Limit, Offset: opts.Offset}
	if c := strings.TrimSpace(q.Get("category")); c != "" {
		f.Categories = strings.Split(strings.ToLower(c), ",")
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		for _, part := range strings.Split(s, ",") {
			st := domain.MarketStatus(strings.TrimSpace(part))
			if !publicStatuses[st] {
				writeError(w, http.StatusBadRequest, "status must be open, closed or resolved")
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	markets, total, err := h.markets.List(r.Context(), tenantOf(r), f)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listResponse[domain.Market]{
		Items:  markets,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetMarket returns a single market by its slug.
// GET /api/markets/{slug}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetForTenant(r.Context(), tenantOf(r), r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market")
		return
	}
	if !publicStatuses[m.Status] {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// History returns price snapshots of a market.
// GET /api/markets/{slug}/history?days=7
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	snaps, err := h.markets.History(r.Context(), tenantOf(r), r.PathValue("slug"), days)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "days": days})
}

// Universe returns the star-field layout of the tenant's markets.
// GET /api/universe
func (h *MarketHandler) Universe(w http.ResponseWriter, r *http.Request) {
	u, err := h.universe.Layout(r.Context(), tenantOf(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to build universe")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// AdminGetMarket returns a market by id in any status.
// GET /api/admin/markets/{id}
func (h *MarketHandler) AdminGetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.markets.GetMarket(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// CreateMarket stores a new draft market.
// POST /api/admin/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var in service.MarketInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	m, err := h.markets.Create(r.Context(), tenantOf(r), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create market")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMarket replaces a market's metadata.
// PUT /api/admin/markets/{id}
func (h *MarketHandler) UpdateMarket(w http.ResponseWriter, r *http.Request) {
	var in service.MarketInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	m, err := h.markets.Update(r.Context(), tenantOf(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// SetStatus moves a market through its lifecycle.
// POST /api/admin/markets/{id}/status {"status":"open"}
func (h *MarketHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.MarketStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	m, err := h.markets.SetStatus(r.Context(), r.PathValue("id"), body.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to change market status")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Resolve settles a closed market.
// POST /api/admin/markets/{id}/resolve {"outcome":"yes"}
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Outcome domain.Outcome `json:"outcome"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	m, err := h.markets.Resolve(r.Context(), r.PathValue("id"), domain.Outcome(strings.ToLower(string(body.Outcome))))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to resolve market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
