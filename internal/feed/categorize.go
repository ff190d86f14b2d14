package feed

import (
	"sort"
	"strings"
	"unicode"
)

// Categories with their trigger phrases. Phrases are matched as whole words
// against lower-cased title and summary text.
var defaultRules = map[string][]string{
	"elections": {
		"election", "elections", "vote", "votes", "voting", "voter", "ballot", "polls",
		"iec", "inec", "candidate", "campaign", "referendum", "by-election",
	},
	"governance": {
		"parliament", "president", "minister", "cabinet", "coalition", "government",
		"corruption", "constitutional court", "impeachment", "anc", "da", "eff", "gnu",
	},
	"currency": {
		"rand", "naira", "cedi", "shilling", "kwacha", "currency", "exchange rate",
		"devaluation", "forex", "dollar",
	},
	"energy": {
		"eskom", "load shedding", "loadshedding", "power cuts", "blackout", "blackouts",
		"grid", "electricity", "fuel price", "petrol", "diesel",
	},
	"security": {
		"attack", "insurgency", "militants", "coup", "protest", "protests", "unrest",
		"violence", "terror", "kidnapping",
	},
	"football": {
		"football", "soccer", "psl", "afcon", "bafana", "super eagles", "black stars",
		"premiership", "kaizer chiefs", "orlando pirates", "sundowns", "caf", "fifa",
	},
	"sport": {
		"rugby", "springboks", "cricket", "proteas", "athletics", "olympics",
		"marathon", "boxing", "tennis", "sport",
	},
	"economy": {
		"gdp", "economy", "recession", "budget", "interest rate", "repo rate",
		"reserve bank", "central bank", "unemployment", "inflation", "imf", "debt",
	},
	"climate": {
		"drought", "flood", "floods", "cyclone", "climate", "heatwave", "rainfall", "wildfire",
	},
}

// Categorizer tags text with categories by keyword.
type Categorizer struct {
	rules map[string][]string
}

// NewCategorizer returns a categorizer over the built-in rules. extra adds or
// extends categories.
func NewCategorizer(extra map[string][]string) *Categorizer {
	rules := make(map[string][]string, len(defaultRules)+len(extra))
	for cat, kws := range defaultRules {
		rules[cat] = append([]string(nil), kws...)
	}
	for cat, kws := range extra {
		rules[cat] = append(rules[cat], kws...)
	}
	return &Categorizer{rules: rules}
}

// Categorize returns the sorted categories whose keywords occur in text,
// merged with pinned.
func (c *Categorizer) Categorize(text string, pinned []string) []string {
	hay := " " + foldWords(text) + " "
	set := make(map[string]bool, len(pinned))
	for _, p := range pinned {
		if p = strings.TrimSpace(p); p != "" {
			set[p] = true
		}
	}
	for cat, kws := range c.rules {
		if set[cat] {
			continue
		}
		for _, kw := range kws {
			if strings.Contains(hay, " "+kw+" ") {
				set[cat] = true
				break
			}
		}
	}

	out := make([]string, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// foldWords lower-cases s and collapses every run of non-word characters
// (hyphens kept) to one space.
func foldWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
