package propagate

import (
	"context"
	"math"

	"github.com/viterin/vek"

	"github.com/inverno-bio/inverno/core/graph"
)

// HeatKernel approximates exp(-t*L)*seed on the normalized Laplacian
// L = I - W via the factored Taylor series
//
//	exp(-t*L) = e^{-t} * sum_k (t^k / k!) * W^k
//
// Expanding around W instead of -t*L keeps every term non-negative, so the
// series cannot cancel catastrophically. Terms are added until the next
// term's L1 mass falls below tolerance or TaylorTerms is reached; stopping
// on the cap flags the result non-converged.
type HeatKernel struct{}

func (HeatKernel) Name() string { return "heat" }

func (HeatKernel) Diffuse(ctx context.Context, tr *graph.Transition, seed []float64, p Params) (*Result, error) {
	p = p.WithDefaults()
	if err := validateSeed(tr, seed); err != nil {
		return nil, err
	}

	// term_k = (t^k / k!) * W^k * seed, accumulated into acc.
	term := make([]float64, tr.N)
	copy(term, seed)
	acc := make([]float64, tr.N)
	copy(acc, seed)
	wx := make([]float64, tr.N)

	var signedTerm, signedAcc, signedWx []float64
	if p.Signed {
		signedTerm = make([]float64, tr.N)
		copy(signedTerm, seed)
		signedAcc = make([]float64, tr.N)
		copy(signedAcc, seed)
		signedWx = make([]float64, tr.N)
	}

	res := &Result{}
	for k := 1; k <= p.TaylorTerms; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		applyTransition(tr, term, wx, p.Dangling)
		vek.MulNumber_Into(term, wx, p.Time/float64(k))
		if err := checkStability(term, k); err != nil {
			return nil, err
		}
		vek.Add_Inplace(acc, term)

		if p.Signed {
			applySignedTransition(tr, signedTerm, signedWx, p.Dangling)
			vek.MulNumber_Into(signedTerm, signedWx, p.Time/float64(k))
			vek.Add_Inplace(signedAcc, signedTerm)
		}

		res.Iterations = k
		if vek.Sum(term) < p.Tolerance {
			res.Converged = true
			break
		}
	}

	scale := math.Exp(-p.Time)
	vek.MulNumber_Inplace(acc, scale)
	if p.Signed {
		vek.MulNumber_Inplace(signedAcc, scale)
	}

	res.Scores = acc
	res.SignedNet = signedAcc
	return res, nil
}
