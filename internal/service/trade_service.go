package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/algorand"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// TxReader reports the pool status of submitted transactions.
type TxReader interface {
	PendingTx(ctx context.Context, txID string) (algorand.PendingTx, error)
}

// TradeInput is a wallet trade reported by the front-end after submission.
type TradeInput struct {
	TxID     string          `json:"tx_id"`
	Wallet   string          `json:"wallet"`
	MarketID string          `json:"market_id"`
	Side     domain.Side     `json:"side"`
	Amount   decimal.Decimal `json:"amount"`
}

// ConfirmResult summarizes one confirmation pass.
type ConfirmResult struct {
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// TradeService records wallet trades and tracks their confirmation.
type TradeService struct {
	trades         domain.TradeStore
	markets        domain.MarketStore
	cache          domain.MarketCache
	chain          TxReader
	bus            domain.EventEmitter
	audit          domain.AuditStore
	confirmTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	trades domain.TradeStore,
	markets domain.MarketStore,
	cache domain.MarketCache,
	chain TxReader,
	bus domain.EventEmitter,
	audit domain.AuditStore,
	confirmTimeout time.Duration,
	logger *slog.Logger,
) *TradeService {
	if confirmTimeout <= 0 {
		confirmTimeout = 10 * time.Minute
	}
	return &TradeService{
		trades:         trades,
		markets:        markets,
		cache:          cache,
		chain:          chain,
		bus:            bus,
		audit:          audit,
		confirmTimeout: confirmTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// maxTxIDLen bounds reported transaction ids; algod ids are 52 characters.
const maxTxIDLen = 64

// amountPlaces matches the NUMERIC(20,6) trade amount column.
const amountPlaces = 6

// Record stores a pending trade against an open market.
func (s *TradeService) Record(ctx context.Context, in TradeInput) (domain.Trade, error) {
	in.TxID = strings.TrimSpace(in.TxID)
	in.Wallet = strings.TrimSpace(in.Wallet)
	in.Side = domain.Side(strings.ToLower(string(in.Side)))

	var errs []string
	if in.TxID == "" || len(in.TxID) > maxTxIDLen {
		errs = append(errs, "tx_id is required")
	}
	if err := algorand.ValidateAddress(in.Wallet); err != nil {
		errs = append(errs, "wallet is not a valid Algorand address")
	}
	if !in.Side.Valid() {
		errs = append(errs, "side must be yes or no")
	}
	if !in.Amount.IsPositive() {
		errs = append(errs, "amount must be positive")
	} else if !in.Amount.Truncate(amountPlaces).Equal(in.Amount) {
		errs = append(errs, "amount has more than 6 decimal places")
	}
	if in.MarketID == "" {
		errs = append(errs, "market_id is required")
	}
	if len(errs) > 0 {
		return domain.Trade{}, fmt.Errorf("trade_service: %s: %w", strings.Join(errs, "; "), domain.ErrInvalidInput)
	}

	m, err := s.markets.GetByID(ctx, in.MarketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Trade{}, fmt.Errorf("trade_service: unknown market %s: %w", in.MarketID, domain.ErrInvalidInput)
		}
		return domain.Trade{}, fmt.Errorf("trade_service: get market %s: %w", in.MarketID, err)
	}
	if m.Status != domain.MarketStatusOpen {
		return domain.Trade{}, fmt.Errorf("trade_service: market %s is %s: %w", m.Slug, m.Status, domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	t := domain.Trade{
		ID:        uuid.NewString(),
		TxID:      in.TxID,
		Wallet:    in.Wallet,
		MarketID:  m.ID,
		Side:      in.Side,
		Amount:    in.Amount,
		Status:    domain.TradePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.trades.Create(ctx, t); err != nil {
		return domain.Trade{}, fmt.Errorf("trade_service: create %s: %w", t.TxID, err)
	}

	s.emit(ctx, "trade_recorded", domain.ForCategory(m.Category), t)
	s.logger.InfoContext(ctx, "trade_service: trade recorded",
		slog.String("tx_id", t.TxID),
		slog.String("market_id", t.MarketID),
		slog.String("side", string(t.Side)),
		slog.String("amount", t.Amount.String()),
	)
	return t, nil
}

// ConfirmPending polls algod for every pending trade. Confirmed trades add to
// their market's volume. Trades the node rejected, or that stay unconfirmed
// past the timeout, are marked failed.
func (s *TradeService) ConfirmPending(ctx context.Context) (ConfirmResult, error) {
	pending, err := s.trades.ListPending(ctx, 200)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("trade_service: list pending: %w", err)
	}

	var res ConfirmResult
	now := s.now().UTC()
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		expired := now.Sub(t.CreatedAt) > s.confirmTimeout

		p, err := s.chain.PendingTx(ctx, t.TxID)
		switch {
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "trade_service: pending tx lookup failed",
				slog.String("tx_id", t.TxID),
				slog.String("error", err.Error()),
			)
			res.Pending++
		case err == nil && p.ConfirmedRound > 0:
			if err := s.confirm(ctx, t, p.ConfirmedRound); err != nil {
				return res, err
			}
			res.Confirmed++
		case err == nil && p.PoolError != "", expired:
			reason := p.PoolError
			if reason == "" {
				reason = "not confirmed before timeout"
			}
			if err := s.fail(ctx, t, reason); err != nil {
				return res, err
			}
			res.Failed++
		default:
			res.Pending++
		}
	}

	if res.Confirmed+res.Failed > 0 {
		s.logger.InfoContext(ctx, "trade_service: confirmation pass",
			slog.Int("confirmed", res.Confirmed),
			slog.Int("failed", res.Failed),
			slog.Int("pending", res.Pending),
		)
	}
	return res, nil
}

func (s *TradeService) confirm(ctx context.Context, t domain.Trade, round uint64) error {
	if err := s.trades.UpdateStatus(ctx, t.ID, domain.TradeConfirmed, round); err != nil {
		return fmt.Errorf("trade_service: confirm %s: %w", t.TxID, err)
	}
	if err := s.markets.AddVolume(ctx, t.MarketID, t.Amount); err != nil {
		return fmt.Errorf("trade_service: add volume %s: %w", t.MarketID, err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, t.MarketID); err != nil {
			s.logger.WarnContext(ctx, "trade_service: cache invalidate failed",
				slog.String("market_id", t.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
	t.Status = domain.TradeConfirmed
	t.ConfirmedRound = round
	s.emitForMarket(ctx, "trade_confirmed", t)
	return nil
}

func (s *TradeService) fail(ctx context.Context, t domain.Trade, reason string) error {
	if err := s.trades.UpdateStatus(ctx, t.ID, domain.TradeFailed, 0); err != nil {
		return fmt.Errorf("trade_service: fail %s: %w", t.TxID, err)
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, "trade_failed", map[string]any{
			"tx_id":  t.TxID,
			"wallet": t.Wallet,
			"reason": reason,
		}); err != nil {
			s.logger.WarnContext(ctx, "trade_service: audit log failed", slog.String("error", err.Error()))
		}
	}
	t.Status = domain.TradeFailed
	s.emitForMarket(ctx, "trade_failed", t)
	return nil
}

// ListByWallet returns trades for a specific wallet with pagination.
func (s *TradeService) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error) {
	if err := algorand.ValidateAddress(wallet); err != nil {
		return nil, err
	}
	trades, err := s.trades.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list by wallet %q: %w", wallet, err)
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	return trades, nil
}

// Positions returns the wallet's confirmed stake per market.
func (s *TradeService) Positions(ctx context.Context, wallet string) ([]domain.Position, error) {
	if err := algorand.ValidateAddress(wallet); err != nil {
		return nil, err
	}
	positions, err := s.trades.Positions(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("trade_service: positions %q: %w", wallet, err)
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	return positions, nil
}

// emitForMarket routes a trade event by its market's category. The event is
// dropped when the market cannot be read, so it never reaches every tenant.
func (s *TradeService) emitForMarket(ctx context.Context, eventType string, t domain.Trade) {
	m, err := s.markets.GetByID(ctx, t.MarketID)
	if err != nil {
		s.logger.WarnContext(ctx, "trade_service: market lookup for event failed",
			slog.String("tx_id", t.TxID),
			slog.String("market_id", t.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.emit(ctx, eventType, domain.ForCategory(m.Category), t)
}

func (s *TradeService) emit(ctx context.Context, eventType string, scope domain.Scope, t domain.Trade) {
	if err := s.bus.Emit(ctx, domain.ChannelTrade, eventType, scope, t); err != nil {
		s.logger.WarnContext(ctx, "trade_service: emit failed",
			slog.String("tx_id", t.TxID),
			slog.String("error", err.Error()),
		)
	}
}
