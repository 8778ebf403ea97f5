// Package propagate diffuses disease seed weights across the knowledge
// graph. Three interchangeable strategies share one interface: random walk
// with restart, heat-kernel diffusion, and personalized PageRank. All of
// them iterate over the graph's column-normalized sparse transition layout
// and return a per-node relevance vector with an explicit convergence flag.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/inverno-bio/inverno/core/graph"
)

var (
	// ErrUnknownAlgorithm marks a request for an unrecognized strategy name.
	ErrUnknownAlgorithm = errors.New("unknown propagation algorithm")

	// ErrEmptySeedVector marks a diffusion started with no positive seed
	// mass. Validation happens before the first sweep.
	ErrEmptySeedVector = errors.New("seed vector has no positive mass")

	// ErrNegativeSeed marks a seed vector entry below zero.
	ErrNegativeSeed = errors.New("negative seed weight")
)

// InstabilityError reports a NaN, infinity, or impossible negative value
// detected during iteration. It is fatal for the disease being scored but
// must not abort sibling runs.
type InstabilityError struct {
	NodeIndex int
	Value     float64
	Iteration int
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("numerical instability at node index %d on iteration %d: %v",
		e.NodeIndex, e.Iteration, e.Value)
}

// DanglingPolicy fixes where the probability mass of zero-out-degree nodes
// goes on each sweep.
type DanglingPolicy string

const (
	// DanglingRedistribute spreads dangling mass uniformly over all nodes,
	// conserving total mass. This is the default.
	DanglingRedistribute DanglingPolicy = "redistribute"

	// DanglingSelfTrap keeps dangling mass on its node. Isolated seed genes
	// then converge to exactly their own seed weight.
	DanglingSelfTrap DanglingPolicy = "selftrap"

	// DanglingDrop discards dangling mass, matching upstream pipelines that
	// zero the transition row. Total mass may shrink below 1.
	DanglingDrop DanglingPolicy = "drop"
)

// Params carries every tunable shared by the strategies. Fields not used by
// a given strategy are ignored by it.
type Params struct {
	// Restart is the RWR restart probability r. Default 0.2.
	Restart float64

	// Damping is the personalized-PageRank damping factor. Default 0.85.
	Damping float64

	// Time is the heat-kernel diffusion time t. Default 0.5.
	Time float64

	// TaylorTerms bounds the heat-kernel series expansion. Default 30.
	TaylorTerms int

	// Tolerance is the L1 convergence threshold. Default 1e-6.
	Tolerance float64

	// MaxIterations caps fixed-point sweeps. Hitting the cap flags the
	// result non-converged; it does not error. Default 100.
	MaxIterations int

	// Dangling selects the dangling-node policy. Default redistribute.
	Dangling DanglingPolicy

	// Signed additionally tracks net activating-vs-inhibiting influence
	// through edge signs, in a parallel vector.
	Signed bool
}

// WithDefaults fills unset parameters with the documented defaults.
func (p Params) WithDefaults() Params {
	if p.Restart <= 0 || p.Restart >= 1 {
		p.Restart = 0.2
	}
	if p.Damping <= 0 || p.Damping >= 1 {
		p.Damping = 0.85
	}
	if p.Time <= 0 {
		p.Time = 0.5
	}
	if p.TaylorTerms <= 0 {
		p.TaylorTerms = 30
	}
	if p.Tolerance <= 0 {
		p.Tolerance = 1e-6
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = 100
	}
	switch p.Dangling {
	case DanglingRedistribute, DanglingSelfTrap, DanglingDrop:
	default:
		p.Dangling = DanglingRedistribute
	}
	return p
}

// Result is a finished diffusion: per-node relevance aligned with the
// graph's dense node indices, the optional signed vector, and how the
// iteration ended.
type Result struct {
	Scores     []float64
	SignedNet  []float64
	Iterations int
	Converged  bool
}

// Algorithm is one propagation strategy. Implementations are stateless and
// safe for concurrent use; all per-run state lives on the stack of Diffuse.
type Algorithm interface {
	Name() string
	Diffuse(ctx context.Context, tr *graph.Transition, seed []float64, p Params) (*Result, error)
}

// ForName resolves a strategy by its configuration name.
func ForName(name string) (Algorithm, error) {
	switch name {
	case "rwr", "":
		return RWR{}, nil
	case "heat", "heat-kernel":
		return HeatKernel{}, nil
	case "pagerank", "ppr":
		return PageRank{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// validateSeed rejects negative entries and all-zero vectors before any
// iteration runs.
func validateSeed(tr *graph.Transition, seed []float64) error {
	if len(seed) != tr.N {
		return fmt.Errorf("seed vector length %d does not match graph size %d", len(seed), tr.N)
	}
	var mass float64
	for i, v := range seed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InstabilityError{NodeIndex: i, Value: v}
		}
		if v < 0 {
			return fmt.Errorf("%w: node index %d weight %v", ErrNegativeSeed, i, v)
		}
		mass += v
	}
	if mass <= 0 {
		return ErrEmptySeedVector
	}
	return nil
}

// applyTransition computes dst = W*x over the merged transition layout and
// applies the dangling policy. dst is fully overwritten.
func applyTransition(tr *graph.Transition, x, dst []float64, policy DanglingPolicy) {
	for i := range dst {
		dst[i] = 0
	}
	for j := 0; j < tr.N; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		for k := tr.Ptr[j]; k < tr.Ptr[j+1]; k++ {
			dst[tr.Idx[k]] += xj * tr.Prob[k]
		}
	}
	switch policy {
	case DanglingSelfTrap:
		for _, d := range tr.Dangling {
			dst[d] += x[d]
		}
	case DanglingDrop:
		// Mass on dangling nodes is discarded.
	default:
		var mass float64
		for _, d := range tr.Dangling {
			mass += x[d]
		}
		if mass > 0 {
			uniform := mass / float64(tr.N)
			for i := range dst {
				dst[i] += uniform
			}
		}
	}
}

// applySignedTransition is applyTransition over the sign-weighted layout.
// Sign-unknown edges contribute nothing; dangling handling mirrors the
// magnitude pass so the signed vector stays on the same scale.
func applySignedTransition(tr *graph.Transition, x, dst []float64, policy DanglingPolicy) {
	for i := range dst {
		dst[i] = 0
	}
	for j := 0; j < tr.N; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		for k := tr.Ptr[j]; k < tr.Ptr[j+1]; k++ {
			dst[tr.Idx[k]] += xj * tr.SignProb[k]
		}
	}
	if policy == DanglingSelfTrap {
		for _, d := range tr.Dangling {
			dst[d] += x[d]
		}
	}
}

// checkStability scans a freshly computed vector for NaN, infinity, or
// negative mass. negTolerance absorbs harmless floating-point noise.
func checkStability(x []float64, iteration int) error {
	const negTolerance = -1e-12
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < negTolerance {
			return &InstabilityError{NodeIndex: i, Value: v, Iteration: iteration}
		}
	}
	return nil
}
