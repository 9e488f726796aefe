// Package rules implements the heuristic voter. Each heuristic looks at the
// recent history and may cast one vote; the majority label wins.
package rules

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/features"
)

const (
	shortWindow    = 5
	longWindow     = 20
	dominanceShare = 0.60
	breakRun       = 4
	followRun      = 2
	hotTotal       = 12
	coldTotal      = 9
)

// DefaultRationale explains the vote cast on an empty history.
const DefaultRationale = "no data, default"

// Vote is one heuristic's contribution.
type Vote struct {
	Label  domain.Label
	Reason string
}

// Result is the outcome of a voting round.
type Result struct {
	Final     domain.Label
	Votes     []Vote
	Rationale string
}

// Evaluate runs the heuristics over history (most recent first) in their
// fixed order and tallies the votes.
func Evaluate(history []domain.Outcome) Result {
	if len(history) == 0 {
		return Result{
			Final:     domain.LabelHigh,
			Votes:     []Vote{{Label: domain.LabelHigh, Reason: DefaultRationale}},
			Rationale: DefaultRationale,
		}
	}

	var votes []Vote
	cast := func(l domain.Label, format string, args ...any) {
		votes = append(votes, Vote{Label: l, Reason: fmt.Sprintf(format, args...)})
	}

	m5 := features.MeanTotal(history, shortWindow)
	m20 := features.MeanTotal(history, longWindow)
	if m5 > m20 {
		cast(domain.LabelHigh, "short(%.1f) > long(%.1f)", m5, m20)
	} else {
		cast(domain.LabelLow, "short(%.1f) <= long(%.1f)", m5, m20)
	}

	high, low := features.LabelShares(history, longWindow)
	switch {
	case high > dominanceShare:
		cast(domain.LabelHigh, "High %.0f%% of last %d", high*100, longWindow)
	case low > dominanceShare:
		cast(domain.LabelLow, "Low %.0f%% of last %d", low*100, longWindow)
	}

	newest := history[0].Label
	if sameLabel(history, breakRun) {
		cast(newest.Opposite(), "%s run of %d, break the streak", newest, breakRun)
	}
	if sameLabel(history, followRun) {
		cast(newest, "%s run of %d, follow the streak", newest, followRun)
	}

	last := history[0].Total
	if last >= hotTotal {
		cast(domain.LabelHigh, "last total high (%d)", last)
	} else if last <= coldTotal {
		cast(domain.LabelLow, "last total low (%d)", last)
	}

	reasons := make([]string, len(votes))
	for i, v := range votes {
		reasons[i] = v.Reason
	}

	return Result{
		Final:     tally(votes),
		Votes:     votes,
		Rationale: strings.Join(reasons, " | "),
	}
}

// tally picks the label with the most votes. Ties go to whichever tied label
// was voted last, matching a stable ascending sort by count that takes the
// final element.
func tally(votes []Vote) domain.Label {
	if len(votes) == 0 {
		return domain.LabelHigh
	}
	counts := make(map[domain.Label]int, 2)
	best := 0
	for _, v := range votes {
		counts[v.Label]++
	}
	for _, c := range counts {
		best = max(best, c)
	}
	var final domain.Label
	for _, v := range votes {
		if counts[v.Label] == best {
			final = v.Label
		}
	}
	return final
}

func sameLabel(history []domain.Outcome, n int) bool {
	if len(history) < n {
		return false
	}
	for _, o := range history[1:n] {
		if o.Label != history[0].Label {
			return false
		}
	}
	return true
}
