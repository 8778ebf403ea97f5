package propagate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/graph"
)

// Engine runs one strategy against a graph for per-disease seed sets and
// translates between gene identifiers and the graph's dense indices. It is
// stateless across runs and safe for concurrent use.
type Engine struct {
	alg    Algorithm
	logger *slog.Logger
}

// NewEngine wraps a strategy. A nil logger falls back to slog.Default().
func NewEngine(alg Algorithm, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{alg: alg, logger: logger}
}

// Algorithm returns the wrapped strategy's name.
func (e *Engine) Algorithm() string { return e.alg.Name() }

// RunResult is one disease's finished propagation keyed by gene ID, plus
// the seed-mapping and convergence facts that go into provenance.
type RunResult struct {
	DiseaseID  string
	Relevance  map[string]float64
	SignedNet  map[string]float64
	Iterations int
	Converged  bool

	SeedsTotal  int
	SeedsMapped int
}

// Run diffuses one disease's seed set. Seed genes absent from the graph are
// skipped without renormalizing: evidence pointing at genes the graph does
// not know is genuinely missing signal, and inflating the remaining seeds
// would overstate them. The skip count is logged and carried in the result.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, seeds *evidence.SeedSet, p Params) (*RunResult, error) {
	tr := g.Transition()

	vec := make([]float64, tr.N)
	mapped := 0
	for gene, w := range seeds.Weights {
		at, ok := g.Lookup(gene)
		if !ok {
			continue
		}
		vec[at] += w
		mapped++
	}
	if mapped == 0 {
		return nil, fmt.Errorf("disease %s: %w: no seed gene maps to the graph",
			seeds.DiseaseID, ErrEmptySeedVector)
	}
	if skipped := len(seeds.Weights) - mapped; skipped > 0 {
		e.logger.Debug("seed genes absent from graph",
			"disease", seeds.DiseaseID,
			"skipped", skipped,
			"mapped", mapped)
	}

	res, err := e.alg.Diffuse(ctx, tr, vec, p)
	if err != nil {
		var inst *InstabilityError
		if errors.As(err, &inst) {
			return nil, fmt.Errorf("disease %s at node %s: %w",
				seeds.DiseaseID, g.NodeID(int32(inst.NodeIndex)), err)
		}
		return nil, fmt.Errorf("disease %s: %w", seeds.DiseaseID, err)
	}

	if !res.Converged {
		e.logger.Warn("propagation hit iteration cap without converging",
			"disease", seeds.DiseaseID,
			"algorithm", e.alg.Name(),
			"iterations", res.Iterations)
	}

	out := &RunResult{
		DiseaseID:   seeds.DiseaseID,
		Relevance:   make(map[string]float64, tr.N),
		Iterations:  res.Iterations,
		Converged:   res.Converged,
		SeedsTotal:  len(seeds.Weights),
		SeedsMapped: mapped,
	}
	if res.SignedNet != nil {
		out.SignedNet = make(map[string]float64, tr.N)
	}
	for i := 0; i < tr.N; i++ {
		id := g.NodeID(int32(i))
		out.Relevance[id] = res.Scores[i]
		if out.SignedNet != nil {
			out.SignedNet[id] = res.SignedNet[i]
		}
	}
	return out, nil
}
