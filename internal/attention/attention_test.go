package attention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain/domaintest"
	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		a, e, m float64
		w       Weights
		want    float64
	}{
		{"defaults", 80, 60, 40, DefaultWeights, 63},
		{"clamped", 150, -20, 100, DefaultWeights, 65},
		{"unnormalized weights", 80, 60, 40, Weights{4, 3.5, 2.5}, 63},
		{"all zero weights", 90, 60, 30, Weights{}, 60},
		{"negative weight ignored", 50, 100, 0, Weights{-1, 1, 0}, 100},
		{"rounding", 33.33, 33.33, 33.34, DefaultWeights, 33.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a, tt.e, tt.m, tt.w); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	est := []domain.AttentionEstimate{
		{Category: "energy", Composite: 80},
		{Category: "elections", Composite: 91},
		{Category: "currency", Composite: 80},
		{Category: "football", Composite: 95},
		{Category: "climate", Composite: 64.9},
		{Category: "security", Composite: 65},
	}
	open := map[string]int{"football": 2}

	got := Recommend(est, open, 65, 3)
	var cats []string
	for _, e := range got {
		cats = append(cats, e.Category)
	}
	if diff := cmp.Diff([]string{"elections", "currency", "energy"}, cats); diff != "" {
		t.Errorf("Recommend mismatch (-want +got):\n%s", diff)
	}

	all := Recommend(est, open, 65, 0)
	if len(all) != 4 || all[3].Category != "security" {
		t.Errorf("unlimited Recommend = %+v", all)
	}
}

type scriptedProvider struct {
	mu      sync.Mutex
	replies map[string]string
	prompts []string
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }
func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, req.Prompt)
	for cat, text := range p.replies {
		if strings.HasPrefix(req.Prompt, "Category: "+cat+"\n") {
			return llm.Response{Text: text}, nil
		}
	}
	return llm.Response{}, errors.New("no reply scripted")
}

var now = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newsFixture() *domaintest.News {
	return &domaintest.News{Items: []domain.NewsItem{
		{FeedURL: "f", GUID: "1", Title: "Voter roll closes", Source: "Wire", Categories: []string{"elections"}, PublishedAt: now.Add(-time.Hour)},
		{FeedURL: "f", GUID: "2", Title: "Coalition talks stall", Source: "Wire", Categories: []string{"elections", "governance"}, PublishedAt: now.Add(-2 * time.Hour)},
		{FeedURL: "f", GUID: "3", Title: "Grid under strain", Source: "Wire", Categories: []string{"energy"}, PublishedAt: now.Add(-3 * time.Hour)},
	}}
}

func TestEstimate(t *testing.T) {
	p := &scriptedProvider{replies: map[string]string{
		"elections": "```json\n{\"attention\": 90, \"engagement\": 80, \"market_worthiness\": 70, \"rationale\": \" busy \", \"suggested_question\": \"Will turnout exceed 60%?\"}\n```",
		"energy":    "I think it is about 40.",
	}}
	est := NewEstimator(p, newsFixture(), EstimatorOptions{Weights: DefaultWeights, Concurrency: 2}, discardLogger())
	est.now = func() time.Time { return now }

	got, err := est.Estimate(context.Background(), "augurion", []string{"energy", "elections"})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d estimates, want 1 (energy unparseable)", len(got))
	}
	e := got[0]
	want := domain.AttentionEstimate{
		Tenant: "augurion", Category: "elections", Attention: 90, Engagement: 80, MarketWorthiness: 70,
		Composite: 81.5, Rationale: "busy", SuggestedQuestion: "Will turnout exceed 60%?",
		NewsCount: 2, Model: "scripted-1", EstimatedAt: now,
	}
	e.ID = ""
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("estimate mismatch (-want +got):\n%s", diff)
	}

	var electionsPrompt string
	for _, pr := range p.prompts {
		if strings.HasPrefix(pr, "Category: elections") {
			electionsPrompt = pr
		}
	}
	if !strings.Contains(electionsPrompt, "News items in the past 7 days: 2") || !strings.Contains(electionsPrompt, "- Coalition talks stall (Wire)") {
		t.Errorf("prompt = %q", electionsPrompt)
	}
}

func TestEstimateAllCategoriesWhenUnfiltered(t *testing.T) {
	p := &scriptedProvider{replies: map[string]string{
		"elections":  `{"attention": 10, "engagement": 10, "market_worthiness": 10}`,
		"governance": `{"attention": 20, "engagement": 20, "market_worthiness": 20}`,
		"energy":     `{"attention": 30, "engagement": 30, "market_worthiness": 30}`,
	}}
	est := NewEstimator(p, newsFixture(), EstimatorOptions{Weights: DefaultWeights}, discardLogger())
	est.now = func() time.Time { return now }

	got, err := est.Estimate(context.Background(), "augurion", nil)
	if err != nil {
		t.Fatal(err)
	}
	var cats []string
	for _, e := range got {
		cats = append(cats, e.Category)
	}
	if diff := cmp.Diff([]string{"elections", "energy", "governance"}, cats); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimateWithoutProvider(t *testing.T) {
	est := NewEstimator(nil, newsFixture(), EstimatorOptions{}, discardLogger())
	if _, err := est.Estimate(context.Background(), "augurion", nil); !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Errorf("err = %v, want ErrLLMUnavailable", err)
	}
}

func TestServiceRun(t *testing.T) {
	p := &scriptedProvider{replies: map[string]string{
		"elections": `{"attention": 90, "engagement": 90, "market_worthiness": 90, "suggested_question": "Will the IEC certify results by Friday?"}`,
		"energy":    `{"attention": 95, "engagement": 95, "market_worthiness": 95}`,
	}}
	est := NewEstimator(p, newsFixture(), EstimatorOptions{Weights: DefaultWeights}, discardLogger())
	est.now = func() time.Time { return now }

	store := &domaintest.Attention{}
	markets := domaintest.NewMarkets(domain.Market{ID: "m1", Slug: "stage-6", Category: "energy", Status: domain.MarketStatusOpen})
	bus := &domaintest.Bus{}
	notifier := &domaintest.Notifier{}
	svc := NewService(est, store, markets, bus, notifier, 65, 5, discardLogger())

	tenant := domain.Tenant{Slug: "augurion", Name: "Augurion", Categories: []string{"elections", "energy"}}
	got, err := svc.Run(context.Background(), tenant)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || len(store.Items) != 2 {
		t.Fatalf("estimates = %d, stored = %d, want 2", len(got), len(store.Items))
	}
	if diff := cmp.Diff([]string{"attention_estimated"}, bus.Types()); diff != "" {
		t.Errorf("bus mismatch (-want +got):\n%s", diff)
	}
	if len(notifier.Sent) != 1 || notifier.Sent[0].Event != "attention_recommendation" {
		t.Fatalf("notifications = %+v", notifier.Sent)
	}
	if msg := notifier.Sent[0].Message; msg != "elections: 90.0 (Will the IEC certify results by Friday?)" {
		t.Errorf("message = %q", msg)
	}

	recs, err := svc.Recommendations(context.Background(), tenant)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Category != "elections" {
		t.Errorf("Recommendations = %+v", recs)
	}
}
