package classifier

import (
	"math"
	"testing"

	"github.com/tjfontaine/dice-oracle/internal/features"
)

func sampleVector() features.Vector {
	return features.Vector{1, -1.875, -0.2, -0.2, -0.2, -0.2, 0, 0.33, 0.67, 0.1, 1}
}

func TestPredictProbability_ZeroWeights(t *testing.T) {
	m := New(DefaultConfig())
	if got := m.PredictProbability(sampleVector()); got != 0.5 {
		t.Errorf("PredictProbability() = %v, want 0.5", got)
	}
}

func TestPredictProbability_StaysInOpenInterval(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
	}{
		{"large positive", 1e6},
		{"large negative", -1e6},
		{"huge positive", math.MaxFloat64 / 32},
		{"huge negative", -math.MaxFloat64 / 32},
		{"moderate", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(DefaultConfig())
			for i := range m.w {
				m.w[i] = tt.weight
			}
			var x features.Vector
			for i := range x {
				x[i] = 1
			}
			p := m.PredictProbability(x)
			if math.IsNaN(p) || p <= 0 || p >= 1 {
				t.Errorf("PredictProbability() = %v, want value in (0,1)", p)
			}
		})
	}
}

func TestTrain_MovesTowardLabel(t *testing.T) {
	x := sampleVector()

	up := New(DefaultConfig())
	before := up.PredictProbability(x)
	up.Train(x, 1)
	if after := up.PredictProbability(x); after < before {
		t.Errorf("after Train(y=1) probability %v < %v", after, before)
	}

	down := New(DefaultConfig())
	before = down.PredictProbability(x)
	down.Train(x, 0)
	if after := down.PredictProbability(x); after > before {
		t.Errorf("after Train(y=0) probability %v > %v", after, before)
	}
}

func TestTrain_RepeatedSteps(t *testing.T) {
	m := New(DefaultConfig())
	x := sampleVector()

	prev := m.PredictProbability(x)
	for i := 0; i < 20; i++ {
		m.Train(x, 1)
		p := m.PredictProbability(x)
		if p < prev {
			t.Fatalf("step %d: probability decreased %v -> %v", i, prev, p)
		}
		prev = p
	}
	if prev <= 0.5 {
		t.Errorf("probability after training = %v, want > 0.5", prev)
	}
}

func TestTrain_GradientStep(t *testing.T) {
	cfg := Config{LearningRate: 0.5, L2: 0}
	m := New(cfg)
	x := features.Vector{1, 2}

	m.Train(x, 1)

	// p = 0.5 at zero weights, so g = -0.5 and w = lr * 0.5 * x.
	w := m.Weights()
	if w[0] != 0.25 || w[1] != 0.5 {
		t.Errorf("Weights() = %v, want [0.25 0.5 ...]", w[:2])
	}
	for i := 2; i < features.Size; i++ {
		if w[i] != 0 {
			t.Errorf("Weights()[%d] = %v, want 0", i, w[i])
		}
	}
}

func TestTrain_L2Shrinks(t *testing.T) {
	m := New(Config{LearningRate: 0.1, L2: 0.5})
	m.w[3] = 2

	// x[3] is zero, so only shrinkage moves w[3].
	m.Train(features.Vector{1}, 0.5)

	if got, want := m.Weights()[3], 2-0.1*0.5*2; math.Abs(got-want) > 1e-12 {
		t.Errorf("Weights()[3] = %v, want %v", got, want)
	}
}
