// Package features turns a stream history into the fixed-width numeric
// vector consumed by the online classifier.
package features

import "github.com/tjfontaine/dice-oracle/internal/domain"

// Size is the width of every feature vector.
const Size = 16

const (
	totalScale        = 4.0
	divergenceScale   = 6.0
	streakScale       = 10.0
	ratioWindow       = 20
	longStreak        = 4
	shortStreak       = 2
	SufficientHistory = 15
)

// Vector is a feature vector. Its width is fixed by the type.
type Vector [Size]float64

// Build derives the feature vector for history, most recent outcome first.
// It is pure: the same history always yields the same vector.
func Build(history []domain.Outcome) Vector {
	lastTotal := domain.NeutralTotal
	if len(history) > 0 {
		lastTotal = float64(history[0].Total)
	}

	mean3 := MeanTotal(history, 3)
	mean5 := MeanTotal(history, 5)
	mean10 := MeanTotal(history, 10)
	mean20 := MeanTotal(history, 20)

	high, low := LabelShares(history, ratioWindow)
	streak := Streak(history)

	raw := []float64{
		1.0,
		normalize(lastTotal),
		normalize(mean3),
		normalize(mean5),
		normalize(mean10),
		normalize(mean20),
		(mean5 - mean20) / divergenceScale,
		high,
		low,
		float64(streak) / streakScale,
		indicator(len(history) > 0 && history[0].Total%2 == 1),
		indicator(lastTotal >= domain.HighThreshold),
		(mean3 - mean10) / divergenceScale,
		indicator(streak >= longStreak),
		indicator(streak >= shortStreak),
		indicator(len(history) >= SufficientHistory),
	}

	// copy pads with zeros or truncates to Size.
	var v Vector
	copy(v[:], raw)
	return v
}

// MeanTotal averages the totals of the n most recent outcomes that exist.
// An empty window averages to 0.
func MeanTotal(history []domain.Outcome, n int) float64 {
	if n > len(history) {
		n = len(history)
	}
	if n == 0 {
		return 0
	}
	var sum int
	for _, o := range history[:n] {
		sum += o.Total
	}
	return float64(sum) / float64(n)
}

// LabelShares returns the fraction of High and Low outcomes among the window
// most recent entries. The denominator is max(1, min(window, len(history))).
func LabelShares(history []domain.Outcome, window int) (high, low float64) {
	n := window
	if len(history) < n {
		n = len(history)
	}
	var highs, lows int
	for _, o := range history[:n] {
		switch o.Label {
		case domain.LabelHigh:
			highs++
		case domain.LabelLow:
			lows++
		}
	}
	denom := float64(max(1, n))
	return float64(highs) / denom, float64(lows) / denom
}

// Streak counts consecutive most recent outcomes sharing the newest label.
func Streak(history []domain.Outcome) int {
	if len(history) == 0 {
		return 0
	}
	first := history[0].Label
	n := 0
	for _, o := range history {
		if o.Label != first {
			break
		}
		n++
	}
	return n
}

func normalize(total float64) float64 {
	return (total - domain.NeutralTotal) / totalScale
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
