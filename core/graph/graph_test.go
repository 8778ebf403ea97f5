package graph

import (
	"errors"
	"math"
	"testing"
)

func buildTestGraph(t *testing.T, cfg BuilderConfig, edges []Edge) *Graph {
	t.Helper()
	b := NewBuilder(cfg)
	for _, e := range edges {
		b.AddEdge(e)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() unexpected error: %v", err)
	}
	return g
}

func TestBuildRejectsSelfLoop(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.AddEdge(Edge{Src: "GENEA", Dst: "GENEA", Relation: RelationActivates, Weight: 1, Source: "lit"})
	_, err := b.Build()
	if err == nil {
		t.Fatal("Build() accepted a self-loop")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if !errors.Is(err, ErrSelfLoop) {
		t.Errorf("error = %v, want ErrSelfLoop", err)
	}
}

func TestBuildRejectsNegativeAndNonFiniteWeights(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   error
	}{
		{name: "negative", weight: -0.5, want: ErrNegativeWeight},
		{name: "NaN", weight: math.NaN(), want: ErrNonFiniteWeight},
		{name: "Inf", weight: math.Inf(1), want: ErrNonFiniteWeight},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(BuilderConfig{})
			b.AddEdge(Edge{Src: "GENEA", Dst: "GENEB", Relation: RelationActivates, Weight: tc.weight})
			_, err := b.Build()
			if !errors.Is(err, tc.want) {
				t.Errorf("Build() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBuildRejectsConflictingNodeType(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.AddNode(Node{ID: "TP53", Type: NodeGene})
	b.AddNode(Node{ID: "TP53", Type: NodeProtein})
	b.AddEdge(Edge{Src: "TP53", Dst: "MDM2", Relation: RelationInhibits, Weight: 1})
	_, err := b.Build()
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("Build() error = %v, want ErrDuplicateNode", err)
	}
}

func TestBuildCollectsAllIssues(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.AddEdge(Edge{Src: "A", Dst: "A", Relation: RelationActivates, Weight: 1})
	b.AddEdge(Edge{Src: "A", Dst: "B", Relation: RelationActivates, Weight: -1})
	_, err := b.Build()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Issues) != 2 {
		t.Errorf("Issues = %d, want 2", len(verr.Issues))
	}
}

func TestEdgeEndpointsAutoRegisterAsGenes(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "GENEA", Dst: "GENEB", Relation: RelationActivates, Weight: 0.8, Source: "string"},
	})
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount() = %d, want 2", g.NodeCount())
	}
	at, ok := g.Lookup("GENEB")
	if !ok {
		t.Fatal("GENEB not registered")
	}
	if g.Node(at).Type != NodeGene {
		t.Errorf("auto-registered type = %v, want gene", g.Node(at).Type)
	}
}

func TestMultiEdgeReducerSumCapsEffectiveWeight(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{Reducer: ReducerSum, MaxEffectiveWeight: 1.0}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 0.7, Source: "string"},
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 0.6, Source: "intact"},
	})
	ns := g.Neighbors("A", DirectionOut)
	if len(ns) != 1 {
		t.Fatalf("Neighbors = %d entries, want 1 merged", len(ns))
	}
	if ns[0].Weight != 1.0 {
		t.Errorf("effective weight = %v, want capped 1.0", ns[0].Weight)
	}
	// Both raw records survive for provenance.
	if got := len(g.EdgesBetween("A", "B")); got != 2 {
		t.Errorf("EdgesBetween = %d records, want 2", got)
	}
}

func TestMultiEdgeReducers(t *testing.T) {
	edges := []Edge{
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 0.4},
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 0.2},
	}
	tests := []struct {
		reducer Reducer
		want    float64
	}{
		{ReducerSum, 0.6},
		{ReducerMax, 0.4},
		{ReducerMean, 0.3},
	}
	for _, tc := range tests {
		t.Run(string(tc.reducer), func(t *testing.T) {
			g := buildTestGraph(t, BuilderConfig{Reducer: tc.reducer}, edges)
			ns := g.Neighbors("A", DirectionOut)
			if len(ns) != 1 || math.Abs(ns[0].Weight-tc.want) > 1e-12 {
				t.Errorf("effective weight = %v, want %v", ns[0].Weight, tc.want)
			}
		})
	}
}

func TestUndirectedRelationsMirror(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationPhysical, Weight: 0.9, Source: "intact"},
		{Src: "B", Dst: "C", Relation: RelationActivates, Weight: 0.5, Source: "lit"},
	})
	// Physical interaction contributes both directions.
	if ns := g.Neighbors("B", DirectionOut); len(ns) != 2 {
		t.Errorf("B out-neighbors = %d, want 2 (mirrored A plus C)", len(ns))
	}
	// Directed activation does not mirror.
	if ns := g.Neighbors("C", DirectionOut); len(ns) != 0 {
		t.Errorf("C out-neighbors = %d, want 0", len(ns))
	}
	if ns := g.Neighbors("C", DirectionIn); len(ns) != 1 || ns[0].ID != "B" {
		t.Errorf("C in-neighbors = %v, want [B]", ns)
	}
}

func TestTransitionColumnsSumToOne(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 0.8},
		{Src: "A", Dst: "C", Relation: RelationActivates, Weight: 0.2},
		{Src: "B", Dst: "C", Relation: RelationInhibits, Sign: SignInhibiting, Weight: 0.5},
	})
	tr := g.Transition()
	for i := int32(0); i < int32(tr.N); i++ {
		var sum float64
		for k := tr.Ptr[i]; k < tr.Ptr[i+1]; k++ {
			sum += tr.Prob[k]
		}
		id := g.NodeID(i)
		out, _ := g.Degree(id)
		if out == 0 {
			if sum != 0 {
				t.Errorf("dangling node %s has outgoing probability %v", id, sum)
			}
			continue
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("node %s outgoing probability = %v, want 1", id, sum)
		}
	}
	// C has no out-edges and must be listed dangling.
	atC, _ := g.Lookup("C")
	found := false
	for _, d := range tr.Dangling {
		if d == atC {
			found = true
		}
	}
	if !found {
		t.Error("C not listed as dangling")
	}
}

func TestSignedTransitionCarriesEdgeSign(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationInhibits, Sign: SignInhibiting, Weight: 1},
	})
	ns := g.Neighbors("A", DirectionOut)
	if len(ns) != 1 || ns[0].Sign != SignInhibiting {
		t.Fatalf("Neighbors = %v, want inhibiting B", ns)
	}
	tr := g.Transition()
	atA, _ := g.Lookup("A")
	k := tr.Ptr[atA]
	if tr.SignProb[k] >= 0 {
		t.Errorf("SignProb = %v, want negative", tr.SignProb[k])
	}
}

func TestSnapshotSwap(t *testing.T) {
	g1 := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 1},
	})
	g2 := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "C", Relation: RelationActivates, Weight: 1},
	})

	snap := NewSnapshot(g1)
	cur, gen := snap.Current()
	if cur != g1 || gen != 1 {
		t.Fatalf("Current() = (%p, %d), want (g1, 1)", cur, gen)
	}
	if next := snap.Swap(g2); next != 2 {
		t.Fatalf("Swap() generation = %d, want 2", next)
	}
	cur, gen = snap.Current()
	if cur != g2 || gen != 2 {
		t.Errorf("Current() after swap = (%p, %d), want (g2, 2)", cur, gen)
	}
	// The old graph stays valid for in-flight runs.
	if g1.NodeCount() != 2 {
		t.Error("swapped-out graph mutated")
	}
}

func TestAveragePairwiseDistance(t *testing.T) {
	// Chain A - B - C - D (undirected physical edges).
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationPhysical, Weight: 1},
		{Src: "B", Dst: "C", Relation: RelationPhysical, Weight: 1},
		{Src: "C", Dst: "D", Relation: RelationPhysical, Weight: 1},
	})
	got := g.AveragePairwiseDistance([]string{"A", "C", "D"})
	// Ordered pairs: (A,C)=2 (A,D)=3 (C,D)=1 and their mirrors.
	want := (2.0 + 3 + 1 + 2 + 1 + 3) / 6
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("AveragePairwiseDistance = %v, want %v", got, want)
	}
}

func TestInterconnectivityZTightModule(t *testing.T) {
	// A tight clique embedded in a long chain: the clique's mean pairwise
	// distance must beat random samples, giving a negative z.
	b := NewBuilder(BuilderConfig{})
	clique := []string{"M1", "M2", "M3", "M4"}
	for i := range clique {
		for j := i + 1; j < len(clique); j++ {
			b.AddEdge(Edge{Src: clique[i], Dst: clique[j], Relation: RelationPhysical, Weight: 1})
		}
	}
	prev := "M1"
	for _, id := range []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9", "C10"} {
		b.AddEdge(Edge{Src: prev, Dst: id, Relation: RelationPhysical, Weight: 1})
		prev = id
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	ic, err := g.InterconnectivityZ(clique, InterconnectivityOptions{Iterations: 200, Seed: 42})
	if err != nil {
		t.Fatalf("InterconnectivityZ error: %v", err)
	}
	if ic.ObservedMean != 1 {
		t.Errorf("clique observed mean = %v, want 1", ic.ObservedMean)
	}
	if ic.Z >= 0 {
		t.Errorf("clique z = %v, want negative (tighter than random)", ic.Z)
	}

	// Determinism by seed.
	again, err := g.InterconnectivityZ(clique, InterconnectivityOptions{Iterations: 200, Seed: 42})
	if err != nil {
		t.Fatalf("InterconnectivityZ rerun error: %v", err)
	}
	if again.Z != ic.Z {
		t.Errorf("z changed across identical runs: %v vs %v", ic.Z, again.Z)
	}
}

func TestInterconnectivityTooFewMapped(t *testing.T) {
	g := buildTestGraph(t, BuilderConfig{}, []Edge{
		{Src: "A", Dst: "B", Relation: RelationActivates, Weight: 1},
	})
	_, err := g.InterconnectivityZ([]string{"A", "NOT_IN_GRAPH"}, DefaultInterconnectivityOptions())
	if !errors.Is(err, ErrTooFewMapped) {
		t.Errorf("error = %v, want ErrTooFewMapped", err)
	}
}
