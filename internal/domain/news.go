package domain

import "time"

// NewsItem is a normalized RSS/Atom entry.
type NewsItem struct {
	ID          int64     `json:"id"`
	FeedURL     string    `json:"feed_url"`
	Source      string    `json:"source"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Link        string    `json:"link"`
	Categories  []string  `json:"categories"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// HasCategory reports whether the item is tagged with any of cats. An empty
// cats slice matches everything.
func (n NewsItem) HasCategory(cats []string) bool {
	if len(cats) == 0 {
		return true
	}
	for _, c := range n.Categories {
		for _, want := range cats {
			if c == want {
				return true
			}
		}
	}
	return false
}
