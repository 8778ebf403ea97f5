package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/inverno-bio/inverno/core/fusion"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/metrics"
	"github.com/inverno-bio/inverno/core/propagate"
	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/reversal"
)

// TargetAggregationEvidenceWeightedMean maps per-gene relevance to a drug
// score as the mean of target relevances weighted by drug-target evidence.
const TargetAggregationEvidenceWeightedMean = "evidence-weighted-mean"

// Config tunes a Runner.
type Config struct {
	// Workers caps concurrent per-disease tasks. Default GOMAXPROCS.
	Workers int

	// Propagation is passed through to every diffusion run.
	Propagation propagate.Params

	// MemoSize bounds the per-disease propagation memo. Repeat runs against
	// the same graph generation and parameters reuse the relevance vector
	// instead of re-diffusing. Default 128 entries.
	MemoSize int

	// FailFast aborts the run on the first isolated failure instead of
	// collecting it and proceeding with siblings.
	FailFast bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MemoSize <= 0 {
		c.MemoSize = 128
	}
	c.Propagation = c.Propagation.WithDefaults()
	return c
}

// Runner scores disease/drug cohorts against the current graph snapshot.
// Safe for concurrent use; Run reads one consistent graph generation at
// entry and holds it for the whole batch.
type Runner struct {
	graphs  *graph.Snapshot
	engine  *propagate.Engine
	scorer  *reversal.Scorer
	fuser   *fusion.Fuser
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry

	memo *lru.Cache[string, *propagate.RunResult]
}

// NewRunner wires the pipeline stages together. logger may be nil
// (slog.Default()) and reg may be nil (metrics become no-ops).
func NewRunner(
	graphs *graph.Snapshot,
	engine *propagate.Engine,
	scorer *reversal.Scorer,
	fuser *fusion.Fuser,
	cfg Config,
	logger *slog.Logger,
	reg *metrics.Registry,
) (*Runner, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	memo, err := lru.New[string, *propagate.RunResult](cfg.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("propagation memo: %w", err)
	}
	return &Runner{
		graphs:  graphs,
		engine:  engine,
		scorer:  scorer,
		fuser:   fuser,
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		memo:    memo,
	}, nil
}

// pairRecord carries one pair between the component stage and fusion.
type pairRecord struct {
	diseaseID string
	drugID    string

	comps rank.Components
	ev    fusion.Evidence

	propProv *rank.PropagationProvenance
	devProv  *rank.DevelopabilityProvenance
	revProv  *rank.ReversalProvenance
}

// Run scores every disease against every drug. Per-disease and per-pair
// breakdowns (including panics) are isolated into Result.Failures; Run
// itself fails only on context cancellation or an empty batch.
func (r *Runner) Run(ctx context.Context, diseases []DiseaseInput, drugs []DrugInput) (*Result, error) {
	if len(diseases) == 0 || len(drugs) == 0 {
		return nil, fmt.Errorf("batch needs at least one disease and one drug")
	}

	g, gen := r.graphs.Current()
	out := &Result{
		Run: rank.RunInfo{
			RunID:      uuid.NewString(),
			StartedAt:  time.Now().UTC(),
			Graph:      fmt.Sprintf("%d nodes, %d edges", g.NodeCount(), g.EdgeCount()),
			Generation: gen,
		},
	}
	r.logger.Info("batch started",
		"run", out.Run.RunID,
		"diseases", len(diseases),
		"drugs", len(drugs),
		"graph", out.Run.Graph)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	fail := func(f Failure) {
		mu.Lock()
		out.Failures = append(out.Failures, f)
		mu.Unlock()
		if r.cfg.FailFast {
			cancel()
		}
	}
	failFast := func() error {
		if !r.cfg.FailFast || len(out.Failures) == 0 {
			return nil
		}
		sortFailures(out.Failures)
		return fmt.Errorf("fail-fast: %s", out.Failures[0])
	}

	props := r.propagateAll(runCtx, g, gen, diseases, fail)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := failFast(); err != nil {
		return nil, err
	}

	pairs := r.scorePairs(runCtx, g, diseases, drugs, props, fail)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := failFast(); err != nil {
		return nil, err
	}

	r.calibrate(pairs)

	start := time.Now()
	for i := range pairs {
		p := &pairs[i]
		fused, err := r.fuser.Fuse(p.comps, p.ev)
		if err != nil {
			fail(Failure{DiseaseID: p.diseaseID, DrugID: p.drugID, Stage: "fuse", Err: err})
			if err := failFast(); err != nil {
				return nil, err
			}
			continue
		}
		if fused.PartialEvidence {
			r.metrics.ObservePartialEvidence()
		}
		if p.devProv != nil && !p.devProv.Present {
			for _, name := range fused.Provenance.MissingApplied {
				if name == "developability" && r.fuser.MissingPolicy() == fusion.MissingImpute {
					p.devProv.Imputed = true
				}
			}
		}
		out.Results = append(out.Results, rank.Result{
			DrugID:          p.drugID,
			DiseaseID:       p.diseaseID,
			Components:      p.comps,
			Fused:           fused.Score,
			Interval:        fused.Interval,
			PartialEvidence: fused.PartialEvidence,
			Provenance: rank.Provenance{
				Propagation:    p.propProv,
				Developability: p.devProv,
				Reversal:       p.revProv,
				Fusion:         &fused.Provenance,
			},
		})
	}
	r.metrics.ObserveRun("fuse", "ok", time.Since(start).Seconds())

	rank.SortResults(out.Results)
	sortFailures(out.Failures)
	r.logger.Info("batch finished",
		"run", out.Run.RunID,
		"results", len(out.Results),
		"failures", len(out.Failures))
	return out, nil
}

// propagateAll fans one diffusion per disease across the worker pool.
// Diseases that fail are dropped from the map and recorded as failures.
func (r *Runner) propagateAll(
	ctx context.Context,
	g *graph.Graph,
	gen uint64,
	diseases []DiseaseInput,
	fail func(Failure),
) map[string]*propagate.RunResult {
	start := time.Now()
	props := make(map[string]*propagate.RunResult, len(diseases))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Workers)
	for _, d := range diseases {
		d := d
		eg.Go(func() error {
			if d.Seeds == nil {
				fail(Failure{DiseaseID: d.ID(), Stage: "propagate",
					Err: fmt.Errorf("disease %s has no seed set", d.ID())})
				return nil
			}
			res, err := r.propagateOne(gctx, g, gen, d)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				fail(Failure{DiseaseID: d.ID(), Stage: "propagate", Err: err})
				r.metrics.ObserveRun("propagate", "error", 0)
				return nil
			}
			r.metrics.ObservePropagation(res.Iterations, res.Converged)
			mu.Lock()
			props[d.ID()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	r.metrics.ObserveRun("propagate", "ok", time.Since(start).Seconds())
	return props
}

func (r *Runner) propagateOne(ctx context.Context, g *graph.Graph, gen uint64, d DiseaseInput) (res *propagate.RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("propagation panicked: %v\n%s", rec, debug.Stack())
		}
	}()

	key := r.memoKey(gen, d.Seeds.DiseaseID)
	if cached, ok := r.memo.Get(key); ok {
		return cached, nil
	}
	res, err = r.engine.Run(ctx, g, d.Seeds, r.cfg.Propagation)
	if err != nil {
		return nil, err
	}
	r.memo.Add(key, res)
	return res, nil
}

func (r *Runner) memoKey(gen uint64, diseaseID string) string {
	p := r.cfg.Propagation
	return fmt.Sprintf("%s|gen=%d|%s|r=%g|d=%g|t=%g|k=%d|tol=%g|max=%d|dangle=%s|signed=%t",
		diseaseID, gen, r.engine.Algorithm(),
		p.Restart, p.Damping, p.Time, p.TaylorTerms,
		p.Tolerance, p.MaxIterations, p.Dangling, p.Signed)
}

// scorePairs computes the three components and the bootstrap evidence atoms
// for every disease/drug pair whose propagation succeeded. Pairs of failed
// diseases still get records when reversal or developability can stand
// alone; the propagation component is simply missing for them.
func (r *Runner) scorePairs(
	ctx context.Context,
	g *graph.Graph,
	diseases []DiseaseInput,
	drugs []DrugInput,
	props map[string]*propagate.RunResult,
	fail func(Failure),
) []pairRecord {
	start := time.Now()
	var (
		mu    sync.Mutex
		pairs []pairRecord
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.cfg.Workers)
	for _, d := range diseases {
		d := d
		eg.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			recs := r.scoreDisease(g, d, drugs, props[d.ID()], fail)
			mu.Lock()
			pairs = append(pairs, recs...)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	r.metrics.ObserveRun("components", "ok", time.Since(start).Seconds())
	return pairs
}

func (r *Runner) scoreDisease(
	g *graph.Graph,
	d DiseaseInput,
	drugs []DrugInput,
	prop *propagate.RunResult,
	fail func(Failure),
) []pairRecord {
	recs := make([]pairRecord, 0, len(drugs))
	for i := range drugs {
		drug := &drugs[i]
		rec, err := r.scorePair(g, d, drug, prop)
		if err != nil {
			fail(Failure{DiseaseID: d.ID(), DrugID: drug.DrugID, Stage: "components", Err: err})
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

func (r *Runner) scorePair(g *graph.Graph, d DiseaseInput, drug *DrugInput, prop *propagate.RunResult) (rec pairRecord, err error) {
	defer func() {
		if rc := recover(); rc != nil {
			err = fmt.Errorf("pair scoring panicked: %v\n%s", rc, debug.Stack())
		}
	}()

	rec = pairRecord{diseaseID: d.ID(), drugID: drug.DrugID}

	if prop != nil {
		score, contribs := drugRelevance(prop, drug)
		rec.comps.Propagation = score
		rec.propProv = &rank.PropagationProvenance{
			Algorithm:         r.engine.Algorithm(),
			Restart:           r.cfg.Propagation.Restart,
			Damping:           r.cfg.Propagation.Damping,
			DiffusionTime:     r.cfg.Propagation.Time,
			Tolerance:         r.cfg.Propagation.Tolerance,
			MaxIterations:     r.cfg.Propagation.MaxIterations,
			Iterations:        prop.Iterations,
			Converged:         prop.Converged,
			DanglingPolicy:    string(r.cfg.Propagation.Dangling),
			SeedNormalization: string(d.Seeds.Normalization),
			SeedsTotal:        prop.SeedsTotal,
			SeedsMapped:       prop.SeedsMapped,
			TargetAggregation: TargetAggregationEvidenceWeightedMean,
			Targets:           contribs,
			Sources:           g.Sources(),
		}
		for _, c := range contribs {
			rec.ev.TargetContributions = append(rec.ev.TargetContributions,
				fusion.WeightedValue{Weight: c.Weight, Value: c.Relevance})
		}
	} else {
		rec.comps.Propagation = rank.Missing()
	}

	rec.comps.Developability = drug.Developability
	rec.devProv = &rank.DevelopabilityProvenance{
		Source:  drug.DevelopabilitySource,
		Present: drug.Developability.Valid(),
	}

	if d.Signature == nil || len(drug.Signatures) == 0 {
		rec.comps.Reversal = rank.Missing()
		return rec, nil
	}
	tau, detail, err := r.scorer.Score(d.Signature, drug.Signatures)
	if err != nil {
		return rec, fmt.Errorf("reversal: %w", err)
	}
	rec.comps.Reversal = tau
	revCfg := r.scorer.Config()
	rec.revProv = &rank.ReversalProvenance{
		Aggregation: string(detail.Aggregation),
		WeightAlpha: revCfg.WeightAlpha,
		MinOverlap:  revCfg.MinOverlap,
		GeneSetSize: revCfg.GeneSetSize,
		Contexts:    detail.Contexts,
		LowCoverage: detail.LowCoverage,
	}
	if detail.LowCoverage {
		r.metrics.ObserveLowCoverage()
	}
	for _, c := range detail.Contexts {
		rec.ev.ContextTaus = append(rec.ev.ContextTaus, c.Tau)
	}
	return rec, nil
}

// drugRelevance collapses per-gene relevance onto a drug as the
// evidence-weighted mean over its targets. Targets absent from the graph
// contribute nothing; a drug with no mapped target gets a missing score,
// never zero.
func drugRelevance(prop *propagate.RunResult, drug *DrugInput) (rank.Score, []rank.TargetContribution) {
	var (
		contribs  []rank.TargetContribution
		sum       float64
		weightSum float64
	)
	for _, t := range drug.Targets {
		rel, ok := prop.Relevance[t.TargetID]
		if !ok {
			continue
		}
		w := t.Evidence
		if w <= 0 {
			w = 1
		}
		contribs = append(contribs, rank.TargetContribution{
			TargetID:  t.TargetID,
			Action:    t.Action,
			Evidence:  t.Evidence,
			Relevance: rel,
			Weight:    w,
		})
		sum += w * rel
		weightSum += w
	}
	if weightSum == 0 {
		return rank.Missing(), nil
	}
	return rank.MustNew(sum / weightSum), contribs
}

// calibrate fits the fuser's per-component transforms against the batch's
// own component population. Raw taus go in unoriented; the fuser negates
// them itself.
func (r *Runner) calibrate(pairs []pairRecord) {
	var bg fusion.Backgrounds
	for i := range pairs {
		if v, ok := pairs[i].comps.Propagation.Value(); ok {
			bg.Propagation = append(bg.Propagation, v)
		}
		if v, ok := pairs[i].comps.Developability.Value(); ok {
			bg.Developability = append(bg.Developability, v)
		}
		if v, ok := pairs[i].comps.Reversal.Value(); ok {
			bg.Reversal = append(bg.Reversal, v)
		}
	}
	r.fuser.FitCalibration(bg)
}

func sortFailures(fs []Failure) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Stage != fs[j].Stage {
			return fs[i].Stage < fs[j].Stage
		}
		if fs[i].DiseaseID != fs[j].DiseaseID {
			return fs[i].DiseaseID < fs[j].DiseaseID
		}
		return fs[i].DrugID < fs[j].DrugID
	})
}
