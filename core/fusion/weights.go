package fusion

import (
	"errors"
	"fmt"
	"math"
)

// weightSumTolerance is how far from 1.0 a weight sum may drift before
// validation rejects it.
const weightSumTolerance = 1e-9

var (
	// ErrWeightsSum marks fixed fusion weights that do not sum to 1.
	ErrWeightsSum = errors.New("fusion weights must sum to 1")

	// ErrNegativeWeight marks a negative fusion weight.
	ErrNegativeWeight = errors.New("fusion weights must be non-negative")

	// ErrNoComponents marks a pair with every component missing; there is
	// nothing to fuse.
	ErrNoComponents = errors.New("no components available to fuse")
)

// Weights are the fixed linear-combination coefficients of the baseline
// fusion formula F = w1*R + w2*D + w3*(-tau).
type Weights struct {
	Propagation    float64 `yaml:"propagation"`
	Developability float64 `yaml:"developability"`
	Reversal       float64 `yaml:"reversal"`
}

// DefaultWeights favors target relevance, then developability, then
// reversal.
func DefaultWeights() Weights {
	return Weights{Propagation: 0.5, Developability: 0.3, Reversal: 0.2}
}

// Validate rejects negative weights and weight sums away from 1.
func (w Weights) Validate() error {
	for name, v := range w.asMap() {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s = %v", ErrNegativeWeight, name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: sum = %v", ErrWeightsSum, sum)
	}
	return nil
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Propagation + w.Developability + w.Reversal
}

// Renormalize drops the weights of absent components and rescales the
// remaining ones proportionally back to sum 1. It errors when nothing
// remains.
func (w Weights) Renormalize(hasPropagation, hasDevelopability, hasReversal bool) (Weights, error) {
	if !hasPropagation {
		w.Propagation = 0
	}
	if !hasDevelopability {
		w.Developability = 0
	}
	if !hasReversal {
		w.Reversal = 0
	}
	sum := w.Sum()
	if sum <= 0 {
		return Weights{}, ErrNoComponents
	}
	inv := 1 / sum
	w.Propagation *= inv
	w.Developability *= inv
	w.Reversal *= inv
	return w, nil
}

func (w Weights) asMap() map[string]float64 {
	return map[string]float64{
		"propagation":    w.Propagation,
		"developability": w.Developability,
		"reversal":       w.Reversal,
	}
}
