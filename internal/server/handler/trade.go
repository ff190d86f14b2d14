package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/service"
)

// TradeService is the trade surface the handler needs.
type TradeService interface {
	Record(ctx context.Context, in service.TradeInput) (domain.Trade, error)
	ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error)
	Positions(ctx context.Context, wallet string) ([]domain.Position, error)
}

// TradeHandler serves wallet trades and positions.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// Record stores a trade the front-end has submitted to the chain.
// POST /api/trades
func (h *TradeHandler) Record(w http.ResponseWriter, r *http.Request) {
	var in service.TradeInput
	if err := decodeJSON(r, &in); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	t, err := h.trades.Record(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to record trade")
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}

// ListByWallet returns a wallet's trades.
// GET /api/wallets/{address}/trades?limit=50&offset=0
func (h *TradeHandler) ListByWallet(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	trades, err := h.trades.ListByWallet(r.Context(), r.PathValue("address"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list trades")
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Trade]{Items: trades, Limit: opts.Limit, Offset: opts.Offset})
}

// Positions returns a wallet's confirmed stake per market.
// GET /api/wallets/{address}/positions
func (h *TradeHandler) Positions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.trades.Positions(r.Context(), r.PathValue("address"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load positions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": ps})
}
