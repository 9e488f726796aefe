// Package domain holds the canonical types shared by the prediction engine,
// the upstream adapters and the read API.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Label is the categorical outcome of a session.
type Label string

const (
	LabelHigh Label = "High"
	LabelLow  Label = "Low"
)

// HighThreshold is the smallest total labelled High.
const HighThreshold = 11

// NeutralTotal is the midpoint of the 3..18 total range.
const NeutralTotal = 10.5

// LabelFor classifies a dice total.
func LabelFor(total int) Label {
	if total >= HighThreshold {
		return LabelHigh
	}
	return LabelLow
}

// Opposite returns the other label.
func (l Label) Opposite() Label {
	if l == LabelHigh {
		return LabelLow
	}
	return LabelHigh
}

// Binary maps High to 1 and Low to 0 for training targets.
func (l Label) Binary() float64 {
	if l == LabelHigh {
		return 1
	}
	return 0
}

// Dice is one roll of three dice.
type Dice [3]int

// Valid reports whether every die is in [1,6].
func (d Dice) Valid() bool {
	for _, v := range d {
		if v < 1 || v > 6 {
			return false
		}
	}
	return true
}

// Total sums the three dice.
func (d Dice) Total() int {
	return d[0] + d[1] + d[2]
}

// String renders the roll dash-joined, e.g. "2-3-4".
func (d Dice) String() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "-")
}

// ParseDice reverses Dice.String.
func ParseDice(s string) (Dice, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Dice{}, fmt.Errorf("parse dice %q: want three values", s)
	}
	var d Dice
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Dice{}, fmt.Errorf("parse dice %q: %w", s, err)
		}
		d[i] = v
	}
	return d, nil
}

// Outcome is one resolved session. It is immutable once created.
type Outcome struct {
	Session int64 `json:"session"`
	Dice    Dice  `json:"dice"`
	Total   int   `json:"total"`
	Label   Label `json:"result"`
}

// NewOutcome derives total and label from a roll.
func NewOutcome(session int64, dice Dice) (Outcome, error) {
	if !dice.Valid() {
		return Outcome{}, fmt.Errorf("session %d dice %v: %w", session, dice, ErrInvalidDice)
	}
	total := dice.Total()
	return Outcome{
		Session: session,
		Dice:    dice,
		Total:   total,
		Label:   LabelFor(total),
	}, nil
}

// Snapshot is the latest published result for a stream.
type Snapshot struct {
	PreviousSession int64  `json:"previous_session"`
	Dice            string `json:"dice"`
	Total           int    `json:"total"`
	Result          Label  `json:"result"`
	NextSession     int64  `json:"next_session"`
	Prediction      Label  `json:"prediction"`
	Confidence      int    `json:"confidence"`
	Rationale       string `json:"rationale"`
	Tag             string `json:"id"`
}

// EmptySnapshot is what readers see before the first session resolves.
func EmptySnapshot(tag string) Snapshot {
	return Snapshot{
		Dice: Dice{}.String(),
		Tag:  tag,
	}
}

// StreamKind selects how upstream events are correlated into sessions.
type StreamKind string

const (
	// StreamSelfContained events carry session id and dice together.
	StreamSelfContained StreamKind = "self"
	// StreamSplitDelivery announces the session id and the dice in separate events.
	StreamSplitDelivery StreamKind = "split"
)

// Valid reports whether k is a known stream kind.
func (k StreamKind) Valid() bool {
	return k == StreamSelfContained || k == StreamSplitDelivery
}
