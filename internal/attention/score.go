// Package attention estimates how much public attention each topic category
// draws and recommends where new markets belong.
package attention

import (
	"math"
	"sort"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Weights blend the three estimated components into a composite.
type Weights struct {
	Attention        float64
	Engagement       float64
	MarketWorthiness float64
}

// DefaultWeights favour raw attention over engagement and tradability.
var DefaultWeights = Weights{Attention: 0.40, Engagement: 0.35, MarketWorthiness: 0.25}

// normalized scales w to sum to one. Negative weights count as zero and an
// all-zero set becomes equal weights.
func (w Weights) normalized() Weights {
	w.Attention = math.Max(w.Attention, 0)
	w.Engagement = math.Max(w.Engagement, 0)
	w.MarketWorthiness = math.Max(w.MarketWorthiness, 0)
	sum := w.Attention + w.Engagement + w.MarketWorthiness
	if sum == 0 {
		return Weights{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	return Weights{w.Attention / sum, w.Engagement / sum, w.MarketWorthiness / sum}
}

// Score returns the weighted composite of attention, engagement and market
// worthiness on a 0-100 scale, rounded to one decimal.
func Score(attention, engagement, marketWorthiness float64, w Weights) float64 {
	n := w.normalized()
	v := clamp(attention)*n.Attention + clamp(engagement)*n.Engagement + clamp(marketWorthiness)*n.MarketWorthiness
	return math.Round(v*10) / 10
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 100)
}

// Recommend returns estimates at or above threshold whose category has no
// open market, highest composite first, at most limit (all when limit <= 0).
func Recommend(estimates []domain.AttentionEstimate, openByCategory map[string]int, threshold float64, limit int) []domain.AttentionEstimate {
	var out []domain.AttentionEstimate
	for _, e := range estimates {
		if e.Composite >= threshold && openByCategory[e.Category] == 0 {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Composite != out[j].Composite {
			return out[i].Composite > out[j].Composite
		}
		return out[i].Category < out[j].Category
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
