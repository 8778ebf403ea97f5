package propagate

import (
	"context"

	"github.com/viterin/vek"

	"github.com/inverno-bio/inverno/core/graph"
)

// RWR is random walk with restart:
//
//	x_{t+1} = (1-r)*W*x_t + r*seed
//
// iterated until the L1 change drops below tolerance or the iteration cap is
// hit, whichever first. A capped run is returned flagged non-converged, not
// failed.
type RWR struct{}

func (RWR) Name() string { return "rwr" }

func (RWR) Diffuse(ctx context.Context, tr *graph.Transition, seed []float64, p Params) (*Result, error) {
	p = p.WithDefaults()
	return fixedPoint(ctx, tr, seed, p, p.Restart)
}

// PageRank is the personalized-PageRank baseline. Its fixed point
//
//	x = d*W*x + (1-d)*seed
//
// is the RWR recurrence with restart 1-d; only the tunable differs.
type PageRank struct{}

func (PageRank) Name() string { return "pagerank" }

func (PageRank) Diffuse(ctx context.Context, tr *graph.Transition, seed []float64, p Params) (*Result, error) {
	p = p.WithDefaults()
	return fixedPoint(ctx, tr, seed, p, 1-p.Damping)
}

// fixedPoint runs the shared restart-style iteration. The restart term
// r*seed is constant across sweeps and precomputed once; each sweep is one
// sparse matvec plus vectorized scale-and-add, allocation-free.
func fixedPoint(ctx context.Context, tr *graph.Transition, seed []float64, p Params, restart float64) (*Result, error) {
	if err := validateSeed(tr, seed); err != nil {
		return nil, err
	}

	x := make([]float64, tr.N)
	copy(x, seed)
	next := make([]float64, tr.N)
	wx := make([]float64, tr.N)
	restartTerm := vek.MulNumber(seed, restart)

	var signed, signedNext, signedWx, signedRestart []float64
	if p.Signed {
		signed = make([]float64, tr.N)
		copy(signed, seed)
		signedNext = make([]float64, tr.N)
		signedWx = make([]float64, tr.N)
		signedRestart = restartTerm
	}

	res := &Result{}
	for iter := 1; iter <= p.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		applyTransition(tr, x, wx, p.Dangling)
		vek.MulNumber_Into(next, wx, 1-restart)
		vek.Add_Inplace(next, restartTerm)

		if err := checkStability(next, iter); err != nil {
			return nil, err
		}

		if p.Signed {
			applySignedTransition(tr, signed, signedWx, p.Dangling)
			vek.MulNumber_Into(signedNext, signedWx, 1-restart)
			vek.Add_Inplace(signedNext, signedRestart)
			signed, signedNext = signedNext, signed
		}

		delta := vek.ManhattanDistance(next, x)
		x, next = next, x
		res.Iterations = iter
		if delta < p.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Scores = x
	res.SignedNet = signed
	return res, nil
}
