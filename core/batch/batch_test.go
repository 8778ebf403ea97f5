package batch

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/fusion"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/propagate"
	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/reversal"
	"github.com/inverno-bio/inverno/core/signature"
)

func testGraph(t testing.TB) *graph.Snapshot {
	t.Helper()
	b := graph.NewBuilder(graph.BuilderConfig{})
	b.AddEdge(graph.Edge{Src: "G1", Dst: "G2", Relation: graph.RelationActivates, Sign: graph.SignActivating, Source: "string-db", Weight: 0.9})
	b.AddEdge(graph.Edge{Src: "G2", Dst: "G3", Relation: graph.RelationActivates, Sign: graph.SignActivating, Source: "string-db", Weight: 0.8})
	b.AddEdge(graph.Edge{Src: "G3", Dst: "G4", Relation: graph.RelationPhysical, Sign: graph.SignUnknown, Source: "intact", Weight: 0.7})
	b.AddEdge(graph.Edge{Src: "G4", Dst: "G5", Relation: graph.RelationPhysical, Sign: graph.SignUnknown, Source: "intact", Weight: 0.6})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return graph.NewSnapshot(g)
}

func testSeeds(t testing.TB, diseaseID string, genes ...string) *evidence.SeedSet {
	t.Helper()
	recs := make([]evidence.SeedEvidence, 0, len(genes))
	for _, g := range genes {
		recs = append(recs, evidence.SeedEvidence{
			DiseaseID: diseaseID, GeneID: g,
			EvidenceType: "genetic", Score: 1, Source: "gwas",
		})
	}
	seeds, err := evidence.BuildSeedSet(diseaseID, recs, evidence.Options{})
	if err != nil {
		t.Fatalf("build seeds: %v", err)
	}
	return seeds
}

func newTestRunner(t testing.TB, cfg Config) *Runner {
	t.Helper()
	alg, err := propagate.ForName("rwr")
	if err != nil {
		t.Fatalf("algorithm: %v", err)
	}
	return newTestRunnerWithAlg(t, cfg, alg)
}

func newTestRunnerWithAlg(t testing.TB, cfg Config, alg propagate.Algorithm) *Runner {
	t.Helper()
	scorer, err := reversal.NewScorer(reversal.Config{GeneSetSize: 5, MinOverlap: 2, CacheMB: 8}, nil)
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	t.Cleanup(scorer.Close)

	fuser, err := fusion.NewFuser(fusion.Config{Weights: fusion.DefaultWeights()}, nil)
	if err != nil {
		t.Fatalf("fuser: %v", err)
	}
	runner, err := NewRunner(testGraph(t), propagate.NewEngine(alg, nil), scorer, fuser, cfg, nil, nil)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	return runner
}

func testInputs(t testing.TB) ([]DiseaseInput, []DrugInput) {
	t.Helper()
	diseaseValues := map[string]float64{
		"G1": 2.1, "G2": 1.4, "G3": 0.8,
		"G4": -1.2, "G5": -2.0,
	}
	reversing := make(map[string]float64, len(diseaseValues))
	aligned := make(map[string]float64, len(diseaseValues))
	for g, v := range diseaseValues {
		reversing[g] = -v
		aligned[g] = v
	}

	diseases := []DiseaseInput{{
		Seeds:     testSeeds(t, "DIS1", "G1", "G2"),
		Signature: &signature.DiseaseSignature{DiseaseID: "DIS1", Values: diseaseValues},
	}}
	drugs := []DrugInput{
		{
			DrugID: "DRUG-REV",
			Targets: []DrugTargetEdge{
				{DrugID: "DRUG-REV", TargetID: "G2", Action: "inhibitor", Evidence: 0.9},
				{DrugID: "DRUG-REV", TargetID: "G3", Action: "inhibitor", Evidence: 0.5},
			},
			Signatures: []signature.DrugSignature{
				{DrugID: "DRUG-REV", Context: "HEPG2", Values: reversing},
			},
			Developability:       rank.MustNew(0.8),
			DevelopabilitySource: "safety-panel-v3",
		},
		{
			DrugID: "DRUG-ALIGN",
			Targets: []DrugTargetEdge{
				{DrugID: "DRUG-ALIGN", TargetID: "G5", Action: "agonist", Evidence: 0.4},
			},
			Signatures: []signature.DrugSignature{
				{DrugID: "DRUG-ALIGN", Context: "HEPG2", Values: aligned},
			},
			Developability:       rank.MustNew(0.3),
			DevelopabilitySource: "safety-panel-v3",
		},
	}
	return diseases, drugs
}

func TestRunnerRanksPairs(t *testing.T) {
	runner := newTestRunner(t, Config{Workers: 2})
	diseases, drugs := testInputs(t)

	res, err := runner.Run(context.Background(), diseases, drugs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failures)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	if res.Run.RunID == "" || res.Run.StartedAt.IsZero() || res.Run.Generation != 1 {
		t.Fatalf("incomplete run info: %+v", res.Run)
	}

	// The reversing, well-targeted, more developable drug must rank first.
	if res.Results[0].DrugID != "DRUG-REV" {
		t.Fatalf("top drug = %s, want DRUG-REV", res.Results[0].DrugID)
	}
	for _, r := range res.Results {
		f, ok := r.Fused.Value()
		if !ok {
			t.Fatalf("%s: fused score missing", r.DrugID)
		}
		if f < 0 || f > 1 {
			t.Fatalf("%s: fused = %v outside [0, 1]", r.DrugID, f)
		}
		if r.PartialEvidence {
			t.Fatalf("%s: marked partial with all three components present", r.DrugID)
		}
		if r.Interval.Low > f || r.Interval.High < f {
			t.Fatalf("%s: interval [%v, %v] excludes point %v",
				r.DrugID, r.Interval.Low, r.Interval.High, f)
		}
	}

	top := res.Results[0]
	pp := top.Provenance.Propagation
	if pp == nil {
		t.Fatal("missing propagation provenance")
	}
	if pp.Algorithm != "rwr" || pp.TargetAggregation != TargetAggregationEvidenceWeightedMean {
		t.Fatalf("propagation provenance = %+v", pp)
	}
	if len(pp.Targets) != 2 {
		t.Fatalf("got %d target contributions, want 2", len(pp.Targets))
	}
	if len(pp.Sources) == 0 {
		t.Fatal("propagation provenance lists no edge sources")
	}
	rp := top.Provenance.Reversal
	if rp == nil || len(rp.Contexts) != 1 {
		t.Fatalf("reversal provenance = %+v", rp)
	}
	if tau, ok := top.Components.Reversal.Value(); !ok || tau >= 0 {
		t.Fatalf("reversing drug tau = %v, want negative", top.Components.Reversal)
	}
	fp := top.Provenance.Fusion
	if fp == nil || fp.WeightMode != string(fusion.WeightModeFixed) {
		t.Fatalf("fusion provenance = %+v", fp)
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	runner := newTestRunner(t, Config{Workers: 2})
	diseases, drugs := testInputs(t)

	// No seed gene of DIS-ORPHAN maps to the graph; its propagation fails
	// but its pairs still fuse from the surviving components.
	diseases = append(diseases, DiseaseInput{
		Seeds: testSeeds(t, "DIS-ORPHAN", "GX1", "GX2"),
		Signature: &signature.DiseaseSignature{
			DiseaseID: "DIS-ORPHAN",
			Values:    map[string]float64{"G1": 1.5, "G2": 1.0, "G4": -1.0, "G5": -1.8},
		},
	})

	res, err := runner.Run(context.Background(), diseases, drugs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("got %d failures, want 1: %v", len(res.Failures), res.Failures)
	}
	f := res.Failures[0]
	if f.DiseaseID != "DIS-ORPHAN" || f.Stage != "propagate" {
		t.Fatalf("failure = %+v", f)
	}
	if len(res.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(res.Results))
	}
	for _, r := range res.Results {
		if r.DiseaseID != "DIS-ORPHAN" {
			continue
		}
		if r.Components.Propagation.Valid() {
			t.Fatalf("%s/%s: propagation should be missing", r.DrugID, r.DiseaseID)
		}
		if !r.PartialEvidence {
			t.Fatalf("%s/%s: not marked partial", r.DrugID, r.DiseaseID)
		}
	}
}

func TestRunnerFailFastAborts(t *testing.T) {
	runner := newTestRunner(t, Config{Workers: 1, FailFast: true})
	diseases, drugs := testInputs(t)
	diseases = append(diseases, DiseaseInput{
		Seeds: testSeeds(t, "DIS-ORPHAN", "GX1", "GX2"),
	})

	_, err := runner.Run(context.Background(), diseases, drugs)
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	if !strings.Contains(err.Error(), "DIS-ORPHAN") {
		t.Fatalf("error does not name the failed disease: %v", err)
	}
}

func TestRunnerMissingTargetsGiveMissingPropagation(t *testing.T) {
	runner := newTestRunner(t, Config{})
	diseases, drugs := testInputs(t)
	drugs = append(drugs, DrugInput{
		DrugID: "DRUG-UNMAPPED",
		Targets: []DrugTargetEdge{
			{DrugID: "DRUG-UNMAPPED", TargetID: "GX9", Action: "unknown", Evidence: 0.9},
		},
		Developability:       rank.MustNew(0.5),
		DevelopabilitySource: "safety-panel-v3",
	})

	res, err := runner.Run(context.Background(), diseases, drugs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var found bool
	for _, r := range res.Results {
		if r.DrugID != "DRUG-UNMAPPED" {
			continue
		}
		found = true
		if r.Components.Propagation.Valid() {
			t.Fatal("propagation scored for a drug with no mapped target")
		}
		if r.Components.Reversal.Valid() {
			t.Fatal("reversal scored for a drug with no signatures")
		}
		if !r.PartialEvidence {
			t.Fatal("not marked partial")
		}
	}
	if !found {
		t.Fatal("DRUG-UNMAPPED missing from results")
	}
}

func TestRunnerDeterministicAcrossRuns(t *testing.T) {
	diseases, drugs := testInputs(t)

	strip := func(res *Result) []rank.Result { return res.Results }

	first := newTestRunner(t, Config{Workers: 4})
	a, err := first.Run(context.Background(), diseases, drugs)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := newTestRunner(t, Config{Workers: 1})
	b, err := second.Run(context.Background(), diseases, drugs)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(strip(a), strip(b)) {
		t.Fatalf("results differ between worker pools:\n%+v\n%+v", strip(a), strip(b))
	}
}

type countingAlg struct {
	inner propagate.Algorithm
	calls atomic.Int64
}

func (c *countingAlg) Name() string { return c.inner.Name() }

func (c *countingAlg) Diffuse(ctx context.Context, tr *graph.Transition, seed []float64, p propagate.Params) (*propagate.Result, error) {
	c.calls.Add(1)
	return c.inner.Diffuse(ctx, tr, seed, p)
}

func TestRunnerMemoizesPropagation(t *testing.T) {
	inner, err := propagate.ForName("rwr")
	if err != nil {
		t.Fatalf("algorithm: %v", err)
	}
	alg := &countingAlg{inner: inner}
	runner := newTestRunnerWithAlg(t, Config{}, alg)
	diseases, drugs := testInputs(t)

	for i := 0; i < 3; i++ {
		if _, err := runner.Run(context.Background(), diseases, drugs); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := alg.calls.Load(); got != 1 {
		t.Fatalf("diffused %d times across repeat runs, want 1 (memo)", got)
	}
}

func TestRunnerCancellation(t *testing.T) {
	runner := newTestRunner(t, Config{})
	diseases, drugs := testInputs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Run(ctx, diseases, drugs); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRunnerRejectsEmptyBatch(t *testing.T) {
	runner := newTestRunner(t, Config{})
	if _, err := runner.Run(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for empty batch")
	}
}
