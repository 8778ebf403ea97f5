package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/inverno-bio/inverno/core/batch"
	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/signature"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "inverno.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGraphRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	nodes := []graph.Node{
		{ID: "G1", Type: graph.NodeGene, Symbol: "TP53", Species: "human"},
		{ID: "P1", Type: graph.NodeProtein, Symbol: "p53", Species: "human"},
	}
	edges := []graph.Edge{
		{Src: "G1", Dst: "G2", Relation: graph.RelationActivates, Sign: graph.SignActivating, Direct: true, Source: "string-db", Weight: 0.9},
		{Src: "G2", Dst: "G3", Relation: graph.RelationPhysical, Sign: graph.SignUnknown, Source: "intact", Weight: 0.5},
		// Parallel edge: must survive storage and collapse only at build.
		{Src: "G1", Dst: "G2", Relation: graph.RelationPathway, Sign: graph.SignUnknown, Source: "reactome", Weight: 0.3},
	}
	if err := s.ImportNodes(ctx, nodes); err != nil {
		t.Fatalf("import nodes: %v", err)
	}
	if err := s.ImportEdges(ctx, edges); err != nil {
		t.Fatalf("import edges: %v", err)
	}

	g, err := s.LoadGraph(ctx, graph.BuilderConfig{})
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	// G2 and G3 are auto-registered from their edges; P1 was explicit.
	if g.NodeCount() != 4 {
		t.Fatalf("got %d nodes, want 4", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Fatalf("got %d edges, want 3", g.EdgeCount())
	}
	at, ok := g.Lookup("P1")
	if !ok {
		t.Fatal("P1 not in loaded graph")
	}
	if typ := g.Node(at).Type; typ != graph.NodeProtein {
		t.Fatalf("P1 type = %s, want protein", typ)
	}
	if between := g.EdgesBetween("G1", "G2"); len(between) != 2 {
		t.Fatalf("got %d parallel edges G1->G2, want 2", len(between))
	}
}

func TestDiseaseRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recs := []evidence.SeedEvidence{
		{DiseaseID: "DIS1", GeneID: "G1", EvidenceType: "genetic", Score: 0.8, Source: "gwas"},
		{DiseaseID: "DIS1", GeneID: "G1", EvidenceType: "expression", Score: 0.4, Source: "array"},
		{DiseaseID: "DIS1", GeneID: "G2", EvidenceType: "genetic", Score: 0.4, Source: "gwas"},
		{DiseaseID: "DIS2", GeneID: "G9", EvidenceType: "genetic", Score: 1.0, Source: "gwas"},
	}
	if err := s.ImportSeedEvidence(ctx, recs); err != nil {
		t.Fatalf("import evidence: %v", err)
	}
	sig := &signature.DiseaseSignature{
		DiseaseID: "DIS1",
		Values:    map[string]float64{"G1": 1.5, "G4": -0.7},
	}
	if err := s.ImportDiseaseSignature(ctx, sig); err != nil {
		t.Fatalf("import signature: %v", err)
	}

	diseases, err := s.LoadDiseases(ctx, evidence.Options{})
	if err != nil {
		t.Fatalf("load diseases: %v", err)
	}
	if len(diseases) != 2 {
		t.Fatalf("got %d diseases, want 2", len(diseases))
	}
	if diseases[0].ID() != "DIS1" || diseases[1].ID() != "DIS2" {
		t.Fatalf("disease order = %s, %s", diseases[0].ID(), diseases[1].ID())
	}

	d1 := diseases[0]
	if len(d1.Seeds.Weights) != 2 {
		t.Fatalf("DIS1 has %d seed genes, want 2", len(d1.Seeds.Weights))
	}
	// Default max aggregation keeps 0.8 for G1; sum normalization scales.
	if got := d1.Seeds.Weights["G1"] / d1.Seeds.Weights["G2"]; got < 1.99 || got > 2.01 {
		t.Fatalf("G1/G2 weight ratio = %v, want 2", got)
	}
	if d1.Signature == nil || d1.Signature.Values["G4"] != -0.7 {
		t.Fatalf("DIS1 signature = %+v", d1.Signature)
	}
	if diseases[1].Signature != nil {
		t.Fatal("DIS2 should have no signature")
	}
}

func TestDrugRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	targets := []batch.DrugTargetEdge{
		{DrugID: "DRUG1", TargetID: "G1", Action: "inhibitor", Evidence: 0.9},
		{DrugID: "DRUG1", TargetID: "G2", Action: "unknown", Evidence: 0.2},
		{DrugID: "DRUG2", TargetID: "G5", Action: "agonist", Evidence: 0.7},
	}
	if err := s.ImportDrugTargets(ctx, targets); err != nil {
		t.Fatalf("import targets: %v", err)
	}
	for _, sig := range []*signature.DrugSignature{
		{DrugID: "DRUG1", Context: "HEPG2", Values: map[string]float64{"G1": -1.2, "G2": 0.4}},
		{DrugID: "DRUG1", Context: "MCF7", Values: map[string]float64{"G1": -0.8}},
	} {
		if err := s.ImportDrugSignature(ctx, sig); err != nil {
			t.Fatalf("import signature %s: %v", sig.Context, err)
		}
	}
	if err := s.ImportDevelopability(ctx, "DRUG1", 0.65, "safety-panel-v3"); err != nil {
		t.Fatalf("import developability: %v", err)
	}

	drugs, err := s.LoadDrugs(ctx)
	if err != nil {
		t.Fatalf("load drugs: %v", err)
	}
	if len(drugs) != 2 {
		t.Fatalf("got %d drugs, want 2", len(drugs))
	}
	d1 := drugs[0]
	if d1.DrugID != "DRUG1" || len(d1.Targets) != 2 || len(d1.Signatures) != 2 {
		t.Fatalf("DRUG1 = %+v", d1)
	}
	if v, ok := d1.Developability.Value(); !ok || v != 0.65 {
		t.Fatalf("DRUG1 developability = %v", d1.Developability)
	}
	if d1.DevelopabilitySource != "safety-panel-v3" {
		t.Fatalf("DRUG1 developability source = %q", d1.DevelopabilitySource)
	}
	if d1.Signatures[0].Context != "HEPG2" || d1.Signatures[0].Values["G1"] != -1.2 {
		t.Fatalf("DRUG1 HEPG2 signature = %+v", d1.Signatures[0])
	}
	if drugs[1].Developability.Valid() {
		t.Fatal("DRUG2 developability should be missing")
	}
}

func TestMaterializeAndLoadRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &batch.Result{
		Run: rank.RunInfo{
			RunID:      "run-1",
			StartedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Graph:      "5 nodes, 4 edges",
			Generation: 1,
		},
		Results: []rank.Result{
			{
				DrugID:    "DRUG1",
				DiseaseID: "DIS1",
				Components: rank.Components{
					Propagation:    rank.MustNew(0.7),
					Developability: rank.MustNew(0.6),
					Reversal:       rank.MustNew(-0.4),
				},
				Fused:    rank.MustNew(0.62),
				Interval: rank.Interval{Low: 0.55, High: 0.70},
				Provenance: rank.Provenance{
					Propagation: &rank.PropagationProvenance{
						Algorithm: "rwr",
						Targets: []rank.TargetContribution{
							{TargetID: "G2", Action: "inhibitor", Evidence: 0.9, Relevance: 0.31, Weight: 0.9},
							{TargetID: "G3", Action: "inhibitor", Evidence: 0.5, Relevance: 0.12, Weight: 0.5},
						},
					},
					Reversal: &rank.ReversalProvenance{
						Aggregation: "median",
						Contexts: []rank.ContextTau{
							{Context: "HEPG2", Tau: -0.4, Overlap: 4, UpSize: 2, DownSize: 2},
						},
					},
				},
			},
			{
				DrugID:          "DRUG2",
				DiseaseID:       "DIS1",
				Components:      rank.Components{Developability: rank.MustNew(0.3)},
				Fused:           rank.MustNew(0.3),
				Interval:        rank.Interval{Low: 0.3, High: 0.3},
				PartialEvidence: true,
			},
		},
	}
	params := map[string]any{"algorithm": "rwr", "restart": 0.2}
	if err := s.MaterializeRun(ctx, res, params); err != nil {
		t.Fatalf("materialize: %v", err)
	}
	// Same run twice violates the primary key.
	if err := s.MaterializeRun(ctx, res, params); err == nil {
		t.Fatal("expected error re-materializing the same run")
	}

	rows, err := s.LoadRanking(ctx, "run-1", 0)
	if err != nil {
		t.Fatalf("load ranking: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Position != 1 || rows[0].DrugID != "DRUG1" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if v, ok := rows[0].Fused.Value(); !ok || v != 0.62 {
		t.Fatalf("first row fused = %v", rows[0].Fused)
	}
	if !rows[1].Partial {
		t.Fatal("second row should be partial")
	}

	limited, err := s.LoadRanking(ctx, "run-1", 1)
	if err != nil {
		t.Fatalf("load limited ranking: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("got %d limited rows, want 1", len(limited))
	}

	var targets int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM target_scores WHERE run_id = ? AND drug_id = 'DRUG1'`,
		"run-1").Scan(&targets); err != nil {
		t.Fatalf("count target scores: %v", err)
	}
	if targets != 2 {
		t.Fatalf("got %d target score rows, want 2", targets)
	}
	var tau float64
	if err := s.db.QueryRowContext(ctx,
		`SELECT tau FROM signature_scores WHERE run_id = ? AND drug_id = 'DRUG1' AND context = 'HEPG2'`,
		"run-1").Scan(&tau); err != nil {
		t.Fatalf("read signature score: %v", err)
	}
	if tau != -0.4 {
		t.Fatalf("tau = %g, want -0.4", tau)
	}
}
