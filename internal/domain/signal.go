package domain

import "time"

// SignalTrend is the direction a fragility signal is moving.
type SignalTrend string

const (
	TrendRising  SignalTrend = "rising"
	TrendFalling SignalTrend = "falling"
	TrendStable  SignalTrend = "stable"
)

// Valid reports whether t is a known trend.
func (t SignalTrend) Valid() bool {
	return t == TrendRising || t == TrendFalling || t == TrendStable
}

// FragilitySignal is a named indicator such as grid stability or currency risk
// that gives context to market topics. Level runs from 0 (calm) to 100.
type FragilitySignal struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Level       int         `json:"level"`
	Trend       SignalTrend `json:"trend"`
	Source      string      `json:"source"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
