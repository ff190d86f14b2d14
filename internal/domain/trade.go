package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the outcome a trade backs.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is yes or no.
func (s Side) Valid() bool { return s == SideYes || s == SideNo }

// TradeStatus tracks on-chain confirmation of a wallet trade.
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeConfirmed TradeStatus = "confirmed"
	TradeFailed    TradeStatus = "failed"
)

// Trade is a wallet-signed Algorand transaction against a market app, as
// reported by the front-end after submission.
type Trade struct {
	ID             string          `json:"id"`
	TxID           string          `json:"tx_id"`
	Wallet         string          `json:"wallet"`
	MarketID       string          `json:"market_id"`
	Side           Side            `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	Status         TradeStatus     `json:"status"`
	ConfirmedRound uint64          `json:"confirmed_round,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Position aggregates a wallet's confirmed stake in one market.
type Position struct {
	Wallet     string          `json:"wallet"`
	MarketID   string          `json:"market_id"`
	YesAmount  decimal.Decimal `json:"yes_amount"`
	NoAmount   decimal.Decimal `json:"no_amount"`
	TradeCount int             `json:"trade_count"`
}
