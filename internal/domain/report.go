package domain

import "time"

// ReportKind identifies a weekly report template.
type ReportKind string

const (
	ReportTraderPulse    ReportKind = "trader_pulse"
	ReportExecutiveBrief ReportKind = "executive_brief"
)

// ReportKinds lists every report kind.
var ReportKinds = []ReportKind{ReportTraderPulse, ReportExecutiveBrief}

// Valid reports whether k is a known report kind.
func (k ReportKind) Valid() bool {
	return k == ReportTraderPulse || k == ReportExecutiveBrief
}

// Label is the human-readable report name.
func (k ReportKind) Label() string {
	switch k {
	case ReportTraderPulse:
		return "Trader Pulse"
	case ReportExecutiveBrief:
		return "Executive Brief"
	}
	return string(k)
}

// ReportStatus is the editorial state of a report.
type ReportStatus string

const (
	ReportDraft          ReportStatus = "draft"
	ReportReadyToPublish ReportStatus = "ready_to_publish"
	ReportPublished      ReportStatus = "published"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	return s == ReportDraft || s == ReportReadyToPublish || s == ReportPublished
}

// CanTransition reports whether a report may move from s to next.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	switch s {
	case ReportDraft:
		return next == ReportReadyToPublish
	case ReportReadyToPublish:
		return next == ReportPublished || next == ReportDraft
	}
	return false
}

// Report is an AI-generated weekly Markdown document.
type Report struct {
	ID          string       `json:"id"`
	Tenant      string       `json:"tenant"`
	Kind        ReportKind   `json:"kind"`
	WeekStart   time.Time    `json:"week_start"`
	Title       string       `json:"title"`
	Markdown    string       `json:"markdown"`
	Status      ReportStatus `json:"status"`
	Model       string       `json:"model"`
	SourceCount int          `json:"source_count"`
	MarketCount int          `json:"market_count"`
	BlobPath    string       `json:"blob_path,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	ReadyAt     *time.Time   `json:"ready_at,omitempty"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
}

// ReportFilter narrows report list queries. Zero values match everything.
type ReportFilter struct {
	Tenant string
	Kind   ReportKind
	Status ReportStatus
	Limit  int
	Offset int
}
