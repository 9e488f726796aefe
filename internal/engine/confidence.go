package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

const (
	MinConfidence = 55
	MaxConfidence = 99
)

// ConfidenceSource draws the confidence figure published with a prediction.
type ConfidenceSource interface {
	Draw() int
}

// RandomConfidence draws uniformly from [MinConfidence, MaxConfidence].
// It is safe for concurrent use.
type RandomConfidence struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomConfidence seeds a PCG generator from crypto/rand.
func NewRandomConfidence() *RandomConfidence {
	return NewSeededConfidence(newSeed(), newSeed())
}

// NewSeededConfidence creates a reproducible source.
func NewSeededConfidence(seed1, seed2 uint64) *RandomConfidence {
	return &RandomConfidence{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Draw returns the next confidence value.
func (c *RandomConfidence) Draw() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MinConfidence + c.rng.IntN(MaxConfidence-MinConfidence+1)
}

// FixedConfidence always draws the same value.
type FixedConfidence int

// Draw returns f.
func (f FixedConfidence) Draw() int {
	return int(f)
}

func newSeed() uint64 {
	var b [8]byte
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = crand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
