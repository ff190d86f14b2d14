package domain

import "time"

// AttentionEstimate is one LLM-estimated attention reading for a topic
// category. All scores are on a 0-100 scale.
type AttentionEstimate struct {
	ID                string    `json:"id"`
	Tenant            string    `json:"tenant"`
	Category          string    `json:"category"`
	Attention         float64   `json:"attention"`
	Engagement        float64   `json:"engagement"`
	MarketWorthiness  float64   `json:"market_worthiness"`
	Composite         float64   `json:"composite"`
	Rationale         string    `json:"rationale"`
	SuggestedQuestion string    `json:"suggested_question"`
	NewsCount         int       `json:"news_count"`
	Model             string    `json:"model"`
	EstimatedAt       time.Time `json:"estimated_at"`
}
