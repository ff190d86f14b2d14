package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// pct renders a probability in [0,1] as a percentage.
func pct(p decimal.Decimal) string {
	return p.Mul(hundred).StringFixed(1) + "%"
}

// pp renders a signed percentage-point change.
func pp(d decimal.Decimal) string {
	s := d.StringFixed(1)
	if d.IsPositive() {
		s = "+" + s
	}
	return s + " pp"
}

func algo(d decimal.Decimal) string {
	return d.StringFixed(0) + " ALGO"
}

// cell escapes a value for a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", "\\|"), "\n", " ")
}

// marketTable renders lines as a compact Markdown table.
func marketTable(lines []MarketLine) string {
	var b strings.Builder
	b.WriteString("| Market | Category | Status | YES | 7d change | Volume | Closes |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, l := range lines {
		m := l.Market
		change := "n/a"
		if l.Baseline {
			change = pp(l.ChangePP)
		}
		closes := "-"
		if m.ClosesAt != nil {
			closes = m.ClosesAt.UTC().Format("2 Jan")
		}
		status := string(m.Status)
		if m.Status == domain.MarketStatusResolved && m.Outcome != domain.OutcomeNone {
			status += " (" + strings.ToUpper(string(m.Outcome)) + ")"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			cell(m.Question), cell(m.Category), status, pct(m.YesPrice), change, algo(m.Volume), closes)
	}
	return b.String()
}

func newsList(items []domain.NewsItem) string {
	var b strings.Builder
	for _, n := range items {
		fmt.Fprintf(&b, "- %s (%s, %s)", n.Title, n.Source, n.PublishedAt.UTC().Format("2 Jan"))
		if len(n.Categories) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(n.Categories, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func signalList(sigs []domain.FragilitySignal) string {
	var b strings.Builder
	for _, s := range sigs {
		fmt.Fprintf(&b, "- %s (%s): level %d/100, %s", s.Name, s.Category, s.Level, s.Trend)
		if s.Description != "" {
			fmt.Fprintf(&b, ". %s", s.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
