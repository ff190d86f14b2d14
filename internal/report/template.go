package report

import (
	"fmt"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

const listLimit = 5

// RenderTemplate writes a report from in without a language model.
func RenderTemplate(in Inputs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", in.DefaultTitle())
	fmt.Fprintf(&b, "_%s. %d markets, %d news items._\n\n", in.Tenant.Name, len(in.Markets), len(in.News))

	if in.Kind == domain.ReportExecutiveBrief {
		writeExecutiveBrief(&b, in)
	} else {
		writeTraderPulse(&b, in)
	}

	b.WriteString("\n---\n_This report was generated automatically from market and news data._\n")
	return b.String()
}

func writeTraderPulse(b *strings.Builder, in Inputs) {
	b.WriteString("## Biggest movers\n\n")
	if movers := in.movers(listLimit); len(movers) > 0 {
		for _, l := range movers {
			fmt.Fprintf(b, "- **%s**: %s to %s YES (%s)\n",
				l.Market.Question, pct(l.StartYes), pct(l.Market.YesPrice), pp(l.ChangePP))
		}
	} else {
		b.WriteString("No price moves this week.\n")
	}

	b.WriteString("\n## Volume leaders\n\n")
	if leaders := in.volumeLeaders(listLimit); len(leaders) > 0 {
		for i, l := range leaders {
			fmt.Fprintf(b, "%d. %s: %s traded, %s YES\n", i+1, l.Market.Question, algo(l.Market.Volume), pct(l.Market.YesPrice))
		}
	} else {
		b.WriteString("No active markets.\n")
	}

	b.WriteString("\n## Closing soon\n\n")
	if soon := in.closingSoon(); len(soon) > 0 {
		for _, l := range soon {
			fmt.Fprintf(b, "- %s: closes %s, %s YES\n",
				l.Market.Question, l.Market.ClosesAt.UTC().Format("Mon 2 Jan 15:04 MST"), pct(l.Market.YesPrice))
		}
	} else {
		b.WriteString("Nothing closes in the next few days.\n")
	}

	writeHeadlines(b, "News catalysts", in.News)
}

func writeExecutiveBrief(b *strings.Builder, in Inputs) {
	b.WriteString("## Fragility signals\n\n")
	if sigs := in.signalsByLevel(); len(sigs) > 0 {
		b.WriteString(signalList(sigs))
	} else {
		b.WriteString("No fragility signals are tracked for these topics.\n")
	}

	b.WriteString("\n## What the markets imply\n\n")
	if leaders := in.volumeLeaders(listLimit); len(leaders) > 0 {
		for _, l := range leaders {
			fmt.Fprintf(b, "- %s: traders put this at %s", l.Market.Question, pct(l.Market.YesPrice))
			if l.Baseline && !l.ChangePP.IsZero() {
				fmt.Fprintf(b, " (%s on the week)", pp(l.ChangePP))
			}
			b.WriteString(".\n")
		}
	} else {
		b.WriteString("No active markets.\n")
	}

	writeHeadlines(b, "Headlines", in.News)
}

func writeHeadlines(b *strings.Builder, heading string, news []domain.NewsItem) {
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	if len(news) == 0 {
		b.WriteString("No news ingested this week.\n")
		return
	}
	for _, n := range head(news, listLimit) {
		if n.Link != "" {
			fmt.Fprintf(b, "- [%s](%s) (%s)\n", n.Title, n.Link, n.Source)
		} else {
			fmt.Fprintf(b, "- %s (%s)\n", n.Title, n.Source)
		}
	}
}
