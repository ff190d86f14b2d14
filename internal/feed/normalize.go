package feed

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// maxSummaryRunes caps stored summaries.
const maxSummaryRunes = 600

// Normalize converts a parsed feed entry into a NewsItem. It returns false
// for entries without a title.
func Normalize(feedURL, source string, it *gofeed.Item, fetchedAt time.Time) (domain.NewsItem, bool) {
	title := cleanText(it.Title)
	if title == "" {
		return domain.NewsItem{}, false
	}
	summary := it.Description
	if strings.TrimSpace(summary) == "" {
		summary = it.Content
	}

	n := domain.NewsItem{
		FeedURL:     feedURL,
		Source:      source,
		GUID:        strings.TrimSpace(it.GUID),
		Title:       title,
		Summary:     truncateRunes(cleanText(summary), maxSummaryRunes),
		Link:        strings.TrimSpace(it.Link),
		PublishedAt: fetchedAt,
		FetchedAt:   fetchedAt,
	}
	if n.GUID == "" {
		n.GUID = n.Link
	}
	if n.GUID == "" {
		sum := sha1.Sum([]byte(title))
		n.GUID = "sha1:" + hex.EncodeToString(sum[:])
	}
	switch {
	case it.PublishedParsed != nil:
		n.PublishedAt = it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		n.PublishedAt = it.UpdatedParsed.UTC()
	}
	return n, true
}

// cleanText strips markup and collapses whitespace.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
