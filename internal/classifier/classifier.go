// Package classifier implements an online logistic regression trained one
// sample at a time.
package classifier

import (
	"math"

	"github.com/tjfontaine/dice-oracle/internal/features"
)

const (
	DefaultLearningRate = 0.08
	DefaultL2           = 1e-4
)

// Config holds the training hyperparameters.
type Config struct {
	LearningRate float64
	L2           float64
}

// DefaultConfig returns the stock hyperparameters.
func DefaultConfig() Config {
	return Config{
		LearningRate: DefaultLearningRate,
		L2:           DefaultL2,
	}
}

// Model is a logistic regression over features.Vector.
//
// Model is not safe for concurrent use. The caller must serialize access.
type Model struct {
	w   features.Vector
	cfg Config
}

// New creates a model with zero weights.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// PredictProbability returns P(High | x).
func (m *Model) PredictProbability(x features.Vector) float64 {
	var z float64
	for i := range m.w {
		z += m.w[i] * x[i]
	}
	return sigmoid(z)
}

// Train takes one gradient step on the logistic loss with L2 shrinkage.
// y is 1 for High and 0 for Low.
func (m *Model) Train(x features.Vector, y float64) {
	g := m.PredictProbability(x) - y
	for i := range m.w {
		m.w[i] -= m.cfg.LearningRate * (g*x[i] + m.cfg.L2*m.w[i])
	}
}

// Weights returns a copy of the current weights.
func (m *Model) Weights() features.Vector {
	return m.w
}

var (
	minProbability = math.SmallestNonzeroFloat64
	maxProbability = math.Nextafter(1, 0)
)

// sigmoid uses the branch that keeps exp's argument non-positive so large
// |z| cannot overflow. The result stays strictly inside (0,1) even where
// float64 would round it to an endpoint.
func sigmoid(z float64) float64 {
	var p float64
	if z >= 0 {
		p = 1 / (1 + math.Exp(-z))
	} else {
		ez := math.Exp(z)
		p = ez / (1 + ez)
	}
	return min(max(p, minProbability), maxProbability)
}
