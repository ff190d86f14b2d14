package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// Star is one market in the universe view. Coordinates lie in the unit disc.
type Star struct {
	ID         string              `json:"id"`
	Slug       string              `json:"slug"`
	Question   string              `json:"question"`
	Category   string              `json:"category"`
	Status     domain.MarketStatus `json:"status"`
	YesPrice   float64             `json:"yes_price"`
	X          float64             `json:"x"`
	Y          float64             `json:"y"`
	Size       float64             `json:"size"`
	Brightness float64             `json:"brightness"`
}

// Cluster is the angular sector a category occupies.
type Cluster struct {
	Category string  `json:"category"`
	Angle    float64 `json:"angle"`
	Count    int     `json:"count"`
}

// Universe is the star-field layout of a tenant's markets.
type Universe struct {
	Clusters []Cluster `json:"clusters"`
	Stars    []Star    `json:"stars"`
}

// UniverseService lays out markets as a deterministic star field.
type UniverseService struct {
	markets domain.MarketStore
}

// NewUniverseService creates a UniverseService.
func NewUniverseService(markets domain.MarketStore) *UniverseService {
	return &UniverseService{markets: markets}
}

// Layout places every open, closed or resolved market of tenant.
func (s *UniverseService) Layout(ctx context.Context, tenant domain.Tenant) (Universe, error) {
	markets, err := s.markets.List(ctx, domain.MarketFilter{
		Categories: tenant.Categories,
		Statuses:   []domain.MarketStatus{domain.MarketStatusOpen, domain.MarketStatusClosed, domain.MarketStatusResolved},
	})
	if err != nil {
		return Universe{}, fmt.Errorf("universe_service: list: %w", err)
	}
	return LayoutUniverse(markets), nil
}

// LayoutUniverse places markets around category clusters. Each category owns
// an equal sector ordered by name. Within it a star's distance and offset
// come from a hash of its slug, its size from log volume and its brightness
// from how far the price sits from even odds.
func LayoutUniverse(markets []domain.Market) Universe {
	counts := make(map[string]int)
	for _, m := range markets {
		counts[m.Category]++
	}
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	u := Universe{Clusters: make([]Cluster, len(cats)), Stars: make([]Star, 0, len(markets))}
	angleOf := make(map[string]float64, len(cats))
	for i, c := range cats {
		a := 2 * math.Pi * float64(i) / float64(len(cats))
		angleOf[c] = a
		u.Clusters[i] = Cluster{Category: c, Angle: round4(a), Count: counts[c]}
	}
	spread := math.Pi
	if len(cats) > 0 {
		spread = math.Pi / float64(len(cats))
	}

	sorted := append([]domain.Market(nil), markets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slug < sorted[j].Slug })
	for _, m := range sorted {
		h := hashSlug(m.Slug)
		radius := 0.25 + 0.7*float64(h&0xffff)/0xffff
		offset := (float64((h>>16)&0xffff)/0xffff*2 - 1) * spread * 0.8
		angle := angleOf[m.Category] + offset

		price, _ := m.YesPrice.Float64()
		volume, _ := m.Volume.Float64()
		u.Stars = append(u.Stars, Star{
			ID:         m.ID,
			Slug:       m.Slug,
			Question:   m.Question,
			Category:   m.Category,
			Status:     m.Status,
			YesPrice:   price,
			X:          round4(radius * math.Cos(angle)),
			Y:          round4(radius * math.Sin(angle)),
			Size:       round4(1 + math.Log10(1+math.Max(volume, 0))),
			Brightness: round4(0.3 + 0.7*math.Min(math.Abs(price-0.5)*2, 1)),
		})
	}
	return u
}

func hashSlug(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
