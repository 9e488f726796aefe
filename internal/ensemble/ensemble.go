// Package ensemble reconciles the rule vote with the online classifier.
package ensemble

import (
	"fmt"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/features"
	"github.com/tjfontaine/dice-oracle/internal/rules"
)

const (
	decisionBoundary = 0.5
	uncertainLow     = 0.45
	uncertainHigh    = 0.55
)

// Predictor scores a feature vector as P(High).
type Predictor interface {
	PredictProbability(x features.Vector) float64
}

// Branch names the policy path that produced a decision.
type Branch string

const (
	BranchAgree       Branch = "agree"
	BranchUncertainML Branch = "ml_uncertain"
	BranchMLOverrides Branch = "ml_overrides"
	BranchSparseAgree Branch = "sparse_agree"
	BranchSparseRule  Branch = "sparse_rule"
)

// Decision is the combined prediction for the next session.
type Decision struct {
	Label       domain.Label
	Branch      Branch
	Probability float64
	MLLabel     domain.Label
	Rule        rules.Result
	// Features is the vector the classifier scored; the engine keeps it to
	// train on once the predicted session resolves.
	Features    features.Vector
	Explanation string
}

// Combine predicts the label of the session after history[0].
func Combine(history []domain.Outcome, model Predictor) Decision {
	rule := rules.Evaluate(history)

	var x features.Vector
	if len(history) > 0 {
		x = features.Build(history)
	}
	p := model.PredictProbability(x)
	ml := domain.LabelLow
	if p >= decisionBoundary {
		ml = domain.LabelHigh
	}

	d := Decision{
		Probability: p,
		MLLabel:     ml,
		Rule:        rule,
		Features:    x,
	}

	var reason string
	switch {
	case len(history) >= features.SufficientHistory && ml == rule.Final:
		d.Label, d.Branch = ml, BranchAgree
		reason = fmt.Sprintf("[ML %.2f] and rules agree -> %s", p, d.Label)
	case len(history) >= features.SufficientHistory && p >= uncertainLow && p <= uncertainHigh:
		d.Label, d.Branch = rule.Final, BranchUncertainML
		reason = fmt.Sprintf("[ML %.2f] uncertain, following rules -> %s", p, d.Label)
	case len(history) >= features.SufficientHistory:
		d.Label, d.Branch = ml, BranchMLOverrides
		reason = fmt.Sprintf("[ML %.2f] outweighs rules -> %s", p, d.Label)
	case ml == rule.Final:
		d.Label, d.Branch = rule.Final, BranchSparseAgree
		reason = fmt.Sprintf("little data, ML %.2f matches rules -> %s", p, d.Label)
	default:
		d.Label, d.Branch = rule.Final, BranchSparseRule
		reason = fmt.Sprintf("little data, ML %.2f, preferring rules -> %s", p, d.Label)
	}

	d.Explanation = reason + " | Rule: " + rule.Rationale
	return d
}
