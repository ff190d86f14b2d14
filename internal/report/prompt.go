package report

import (
	"fmt"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

const traderPulseSystem = `You are the markets editor of Augurion, a prediction market covering African politics and sport.
Write the weekly Trader Pulse for active traders in Markdown.
Start with a single H1 title. Then use these H2 sections in order:
Biggest movers, Volume leaders, Closing soon, News catalysts, What to watch.
Quote probabilities as percentages and changes in percentage points.
Only use the data provided. Do not invent markets, prices or events.`

const executiveBriefSystem = `You are a political-risk analyst at Augurion, a prediction market covering African politics and sport.
Write the weekly Executive Brief for non-traders in Markdown.
Start with a single H1 title. Then use these H2 sections in order:
Summary, Fragility signals, What the markets imply, Outlook.
Keep the tone sober and explain market probabilities in plain language.
Only use the data provided. Do not invent markets, prices or events.`

// BuildPrompt renders the system and user prompt for in. The output depends
// only on in.
func BuildPrompt(in Inputs) (system, prompt string) {
	system = traderPulseSystem
	if in.Kind == domain.ReportExecutiveBrief {
		system = executiveBriefSystem
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audience: %s\n", in.Tenant.Name)
	fmt.Fprintf(&b, "Report: %s\n", in.Kind.Label())
	fmt.Fprintf(&b, "Week starting: %s\n", in.WeekStart.Format("Monday 2 January 2006"))
	fmt.Fprintf(&b, "Suggested title: %s\n\n", in.DefaultTitle())

	b.WriteString("## Markets\n\n")
	if len(in.Markets) == 0 {
		b.WriteString("No active markets.\n")
	} else {
		b.WriteString(marketTable(in.volumeLeaders(0)))
	}

	if in.Kind == domain.ReportTraderPulse {
		if soon := in.closingSoon(); len(soon) > 0 {
			b.WriteString("\n## Closing soon\n\n")
			for _, l := range soon {
				fmt.Fprintf(&b, "- %s closes %s at %s YES\n",
					l.Market.Question, l.Market.ClosesAt.UTC().Format("Mon 2 Jan 15:04 MST"), pct(l.Market.YesPrice))
			}
		}
	}

	fmt.Fprintf(&b, "\n## News from the past 7 days (%d items)\n\n", len(in.News))
	if len(in.News) == 0 {
		b.WriteString("No news ingested.\n")
	} else {
		b.WriteString(newsList(in.News))
	}

	b.WriteString("\n## Fragility signals\n\n")
	if len(in.Signals) == 0 {
		b.WriteString("None tracked.\n")
	} else {
		b.WriteString(signalList(in.signalsByLevel()))
	}
	return system, b.String()
}
