package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusDraft     MarketStatus = "draft"
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Valid reports whether s is a known market status.
func (s MarketStatus) Valid() bool {
	switch s {
	case MarketStatusDraft, MarketStatusOpen, MarketStatusClosed,
		MarketStatusResolved, MarketStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a market may move from s to next.
// Markets advance draft -> open -> closed -> resolved; anything that is not
// yet resolved may be cancelled.
func (s MarketStatus) CanTransition(next MarketStatus) bool {
	switch next {
	case MarketStatusOpen:
		return s == MarketStatusDraft
	case MarketStatusClosed:
		return s == MarketStatusOpen
	case MarketStatusResolved:
		return s == MarketStatusClosed
	case MarketStatusCancelled:
		return s != MarketStatusResolved && s != MarketStatusCancelled
	}
	return false
}

// Outcome is the resolved side of a binary market.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeYes  Outcome = "yes"
	OutcomeNo   Outcome = "no"
)

// Market is a binary YES/NO prediction market. The authoritative pools live in
// an Algorand application; the row here mirrors them for display.
type Market struct {
	ID               string          `json:"id"`
	Slug             string          `json:"slug"`
	Question         string          `json:"question"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Tenant           string          `json:"tenant"`
	AppID            uint64          `json:"app_id"`
	Status           MarketStatus    `json:"status"`
	Outcome          Outcome         `json:"outcome,omitempty"`
	YesPrice         decimal.Decimal `json:"yes_price"`
	YesPool          decimal.Decimal `json:"yes_pool"`
	NoPool           decimal.Decimal `json:"no_pool"`
	Volume           decimal.Decimal `json:"volume"`
	FragilitySignals []string        `json:"fragility_signals"`
	ClosesAt         *time.Time      `json:"closes_at,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NoPrice is the complement of the YES price.
func (m Market) NoPrice() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(m.YesPrice)
}

// MarketFilter narrows market list queries.
type MarketFilter struct {
	Categories []string
	Statuses   []MarketStatus
	Limit      int
	Offset     int
}

// MarketSnapshot is a point-in-time copy of a market's chain state.
type MarketSnapshot struct {
	MarketID string          `json:"market_id"`
	YesPrice decimal.Decimal `json:"yes_price"`
	YesPool  decimal.Decimal `json:"yes_pool"`
	NoPool   decimal.Decimal `json:"no_pool"`
	Volume   decimal.Decimal `json:"volume"`
	TakenAt  time.Time       `json:"taken_at"`
}
