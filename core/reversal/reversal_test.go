package reversal

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/inverno-bio/inverno/core/signature"
)

// testDisease builds a disease signature with nUp up-regulated and nDown
// down-regulated genes at distinct effect sizes.
func testDisease(nUp, nDown int) *signature.DiseaseSignature {
	values := make(map[string]float64)
	for i := 0; i < nUp; i++ {
		values[fmt.Sprintf("UP%02d", i)] = 1 + float64(i)*0.1
	}
	for i := 0; i < nDown; i++ {
		values[fmt.Sprintf("DOWN%02d", i)] = -1 - float64(i)*0.1
	}
	return &signature.DiseaseSignature{DiseaseID: "EFO:1", Values: values}
}

func asDrug(sig *signature.DiseaseSignature, drugID, context string) signature.DrugSignature {
	values := make(map[string]float64, len(sig.Values))
	for g, v := range sig.Values {
		values[g] = v
	}
	return signature.DrugSignature{DrugID: drugID, Context: context, Values: values}
}

func newTestScorer(t *testing.T, cfg Config) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg, nil)
	if err != nil {
		t.Fatalf("NewScorer error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSelfSignatureReinforces(t *testing.T) {
	disease := testDisease(10, 10)
	scorer := newTestScorer(t, Config{MinOverlap: 5})

	score, detail, err := scorer.Score(disease, []signature.DrugSignature{
		asDrug(disease, "drug1", "MCF7"),
	})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	tau, ok := score.Value()
	if !ok {
		t.Fatalf("score missing, detail %+v", detail)
	}
	if tau < 0.8 {
		t.Errorf("self tau = %v, want strongly positive reinforcement", tau)
	}
}

func TestNegatedSignatureReverses(t *testing.T) {
	disease := testDisease(10, 10)
	scorer := newTestScorer(t, Config{MinOverlap: 5})

	score, _, err := scorer.Score(disease, []signature.DrugSignature{
		asDrug(disease.Negate(), "drug1", "MCF7"),
	})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	tau, ok := score.Value()
	if !ok {
		t.Fatal("score missing")
	}
	if tau > -0.8 {
		t.Errorf("negated tau = %v, want strongly negative reversal", tau)
	}
}

func TestTauBounds(t *testing.T) {
	disease := testDisease(20, 20)
	scorer := newTestScorer(t, Config{MinOverlap: 5})

	for _, drug := range []signature.DrugSignature{
		asDrug(disease, "d", "c1"),
		asDrug(disease.Negate(), "d", "c2"),
	} {
		score, _, err := scorer.Score(disease, []signature.DrugSignature{drug})
		if err != nil {
			t.Fatalf("Score error: %v", err)
		}
		if tau, ok := score.Value(); !ok || tau < -1 || tau > 1 {
			t.Errorf("tau = %v (ok=%v), want inside [-1, 1]", tau, ok)
		}
	}
}

func TestLowCoverageReturnsMissingNotZero(t *testing.T) {
	disease := testDisease(10, 10)
	scorer := newTestScorer(t, Config{MinOverlap: 10})

	// Drug signature shares only three genes with the disease.
	drug := signature.DrugSignature{
		DrugID:  "drug1",
		Context: "MCF7",
		Values: map[string]float64{
			"UP00": 0.5, "DOWN00": -0.4, "UP01": 0.1,
			"OTHER1": 2, "OTHER2": -2,
		},
	}
	score, detail, err := scorer.Score(disease, []signature.DrugSignature{drug})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if score.Valid() {
		t.Errorf("score = %v, want missing under low coverage", score)
	}
	if !detail.LowCoverage {
		t.Error("LowCoverage flag not set")
	}
	if detail.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", detail.Skipped)
	}
}

func TestNoSignaturesIsMissing(t *testing.T) {
	scorer := newTestScorer(t, Config{})
	score, detail, err := scorer.Score(testDisease(5, 5), nil)
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if score.Valid() || !detail.LowCoverage {
		t.Errorf("score=%v lowCoverage=%v, want missing + flagged", score, detail.LowCoverage)
	}
}

func TestContextAggregationRules(t *testing.T) {
	disease := testDisease(10, 10)

	// Three contexts: two reinforcing copies and one reversing copy with
	// extra covered genes so best-coverage picks it.
	reversing := asDrug(disease.Negate(), "drug1", "a-reversing")
	reinf1 := asDrug(disease, "drug1", "b-reinforcing")
	reinf2 := asDrug(disease, "drug1", "c-reinforcing")
	for g, v := range disease.Values {
		// Widen the reversing context with neutral off-signature genes so
		// its ranking still covers every disease gene.
		reversing.Values["PAD_"+g] = v * 0.01
	}
	sigs := []signature.DrugSignature{reversing, reinf1, reinf2}

	t.Run("median", func(t *testing.T) {
		scorer := newTestScorer(t, Config{MinOverlap: 5, Aggregation: AggregationMedian})
		score, detail, err := scorer.Score(disease, sigs)
		if err != nil {
			t.Fatalf("Score error: %v", err)
		}
		if len(detail.Contexts) != 3 {
			t.Fatalf("contexts scored = %d, want 3", len(detail.Contexts))
		}
		if tau, _ := score.Value(); tau <= 0 {
			t.Errorf("median tau = %v, want positive (two of three reinforce)", tau)
		}
	})

	t.Run("extreme keeps largest magnitude", func(t *testing.T) {
		scorer := newTestScorer(t, Config{MinOverlap: 5, Aggregation: AggregationExtreme})
		score, detail, err := scorer.Score(disease, sigs)
		if err != nil {
			t.Fatalf("Score error: %v", err)
		}
		want := detail.Contexts[0].Tau
		for _, c := range detail.Contexts[1:] {
			if abs(c.Tau) > abs(want) {
				want = c.Tau
			}
		}
		if tau, _ := score.Value(); tau != want {
			t.Errorf("extreme tau = %v, want %v", tau, want)
		}
	})

	t.Run("best coverage", func(t *testing.T) {
		scorer := newTestScorer(t, Config{MinOverlap: 5, Aggregation: AggregationBestCoverage})
		score, detail, err := scorer.Score(disease, sigs)
		if err != nil {
			t.Fatalf("Score error: %v", err)
		}
		best := detail.Contexts[0]
		for _, c := range detail.Contexts[1:] {
			if c.Overlap > best.Overlap {
				best = c
			}
		}
		if tau, _ := score.Value(); tau != best.Tau {
			t.Errorf("best-coverage tau = %v, want %v from context %s", tau, best.Tau, best.Context)
		}
	})
}

func TestScoreDeterministicAcrossContextOrder(t *testing.T) {
	disease := testDisease(10, 10)
	a := asDrug(disease, "drug1", "ctx-a")
	b := asDrug(disease.Negate(), "drug1", "ctx-b")

	scorer := newTestScorer(t, Config{MinOverlap: 5})
	s1, d1, err := scorer.Score(disease, []signature.DrugSignature{a, b})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	s2, d2, err := scorer.Score(disease, []signature.DrugSignature{b, a})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if s1 != s2 {
		t.Errorf("score differs by input order: %v vs %v", s1, s2)
	}
	if len(d1.Contexts) != len(d2.Contexts) || d1.Contexts[0].Context != d2.Contexts[0].Context {
		t.Error("context provenance order not deterministic")
	}
}

func TestSameSignEnrichmentsAreNull(t *testing.T) {
	// Disease up and down genes both sit at the top of the drug ranking:
	// both enrichments positive, connectivity must be null, not spurious.
	disease := &signature.DiseaseSignature{
		DiseaseID: "D",
		Values: map[string]float64{
			"U1": 1, "U2": 0.9, "D1": -1, "D2": -0.9,
		},
	}
	drug := signature.DrugSignature{
		DrugID: "drug1", Context: "c",
		Values: map[string]float64{
			"U1": 5, "U2": 4.5, "D1": 4.8, "D2": 4.2,
			"X1": -1, "X2": -1.1, "X3": -1.2, "X4": -1.3,
		},
	}
	scorer := newTestScorer(t, Config{MinOverlap: 2})
	score, _, err := scorer.Score(disease, []signature.DrugSignature{drug})
	if err != nil {
		t.Fatalf("Score error: %v", err)
	}
	if tau, ok := score.Value(); !ok || tau != 0 {
		t.Errorf("same-sign tau = %v (ok=%v), want exactly 0", tau, ok)
	}
}

func BenchmarkConnectivityTau(b *testing.B) {
	rng := rand.New(rand.NewSource(11))
	drugValues := make(map[string]float64, 12000)
	for i := 0; i < 12000; i++ {
		drugValues[fmt.Sprintf("GENE%05d", i)] = rng.NormFloat64()
	}
	ranking := signature.NewRanking(&signature.DrugSignature{
		DrugID: "drug1", Context: "MCF7", Values: drugValues,
	})

	diseaseValues := make(map[string]float64, 600)
	for i := 0; i < 600; i++ {
		diseaseValues[fmt.Sprintf("GENE%05d", rng.Intn(12000))] = rng.NormFloat64() * 2
	}
	sets := signature.TopGeneSets(&signature.DiseaseSignature{
		DiseaseID: "EFO:1", Values: diseaseValues,
	}, 150)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		connectivityTau(ranking, sets, 1)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
