package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmcdole/gofeed"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCategorize(t *testing.T) {
	c := NewCategorizer(nil)
	tests := []struct {
		name   string
		text   string
		pinned []string
		want   []string
	}{
		{"elections", "IEC confirms voter roll ahead of the Election", nil, []string{"elections"}},
		{"multi", "Eskom load shedding hits GDP forecast", nil, []string{"economy", "energy"}},
		{"football", "Bafana Bafana name AFCON squad", nil, []string{"football"}},
		{"word boundary", "Brandon wins the award", nil, []string{}},
		{"pinned kept", "Nothing relevant here", []string{"sport"}, []string{"sport"}},
		{"punctuation", "Rand slides; forex desks cautious.", nil, []string{"currency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Categorize(tt.text, tt.pinned)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Categorize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCategorizeExtraRules(t *testing.T) {
	c := NewCategorizer(map[string][]string{"mining": {"platinum"}})
	got := c.Categorize("Platinum output falls", nil)
	if diff := cmp.Diff([]string{"mining"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize(t *testing.T) {
	fetched := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	pub := time.Date(2026, 3, 1, 8, 0, 0, 0, time.FixedZone("SAST", 2*3600))

	t.Run("strips markup and falls back to link guid", func(t *testing.T) {
		it := &gofeed.Item{
			Title:           "  Rand <b>firm</b> ",
			Description:     "<p>The rand &amp; the dollar.</p>",
			Link:            "https://news.example/a",
			PublishedParsed: &pub,
		}
		n, ok := Normalize("https://news.example/rss", "Example", it, fetched)
		if !ok {
			t.Fatal("Normalize returned false")
		}
		if n.Title != "Rand firm" {
			t.Errorf("Title = %q", n.Title)
		}
		if n.Summary != "The rand & the dollar." {
			t.Errorf("Summary = %q", n.Summary)
		}
		if n.GUID != "https://news.example/a" {
			t.Errorf("GUID = %q", n.GUID)
		}
		if !n.PublishedAt.Equal(pub) || n.PublishedAt.Location() != time.UTC {
			t.Errorf("PublishedAt = %v", n.PublishedAt)
		}
	})

	t.Run("hash guid and fetch time", func(t *testing.T) {
		n, ok := Normalize("u", "s", &gofeed.Item{Title: "Headline"}, fetched)
		if !ok {
			t.Fatal("Normalize returned false")
		}
		if !strings.HasPrefix(n.GUID, "sha1:") {
			t.Errorf("GUID = %q", n.GUID)
		}
		if !n.PublishedAt.Equal(fetched) {
			t.Errorf("PublishedAt = %v", n.PublishedAt)
		}
	})

	t.Run("empty title dropped", func(t *testing.T) {
		if _, ok := Normalize("u", "s", &gofeed.Item{Title: "<br/>"}, fetched); ok {
			t.Error("expected item to be dropped")
		}
	})

	t.Run("summary capped", func(t *testing.T) {
		n, _ := Normalize("u", "s", &gofeed.Item{Title: "T", Description: strings.Repeat("é", 900)}, fetched)
		if got := len([]rune(n.Summary)); got != maxSummaryRunes {
			t.Errorf("summary runes = %d, want %d", got, maxSummaryRunes)
		}
	})
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>Eskom announces load shedding</title><guid>a1</guid><link>https://w/a1</link>
<pubDate>Mon, 02 Mar 2026 08:00:00 GMT</pubDate></item>
<item><title>Old story about the election</title><guid>a2</guid>
<pubDate>Mon, 02 Feb 2026 08:00:00 GMT</pubDate></item>
</channel></rss>`

func TestFetchAll(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/rss+xml")
			io.WriteString(w, sampleRSS)
		case "/bad":
			io.WriteString(w, "not a feed")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := config.FeedsConfig{
		Sources: []config.FeedSource{
			{URL: srv.URL + "/ok", Categories: []string{"economy"}},
			{URL: srv.URL + "/bad"},
			{URL: srv.URL + "/missing"},
		},
		Concurrency: 2,
		UserAgent:   "augurion-test",
	}
	cfg.Timeout.Duration = 5 * time.Second
	cfg.MaxAge.Duration = 7 * 24 * time.Hour

	f := NewFetcher(cfg, nil, discardLogger())
	f.now = func() time.Time { return time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC) }

	res, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if res.Feeds != 3 || res.Failed != 2 {
		t.Errorf("Feeds=%d Failed=%d, want 3 and 2", res.Feeds, res.Failed)
	}
	if len(res.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(res.Items))
	}
	item := res.Items[0]
	if item.Source != "Wire" || item.GUID != "a1" {
		t.Errorf("item = %+v", item)
	}
	if diff := cmp.Diff([]string{"economy", "energy"}, item.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if gotUA != "augurion-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}
