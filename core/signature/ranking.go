package signature

import "sort"

// Ranking is a drug signature ordered by effect size, strongest
// up-regulation first. It is the precomputed shape the connectivity scorer
// walks; one ranking is reused across every disease scored against the same
// drug context, so rankings are cached aggressively.
type Ranking struct {
	DrugID  string
	Context string

	// Genes in descending effect order, ties broken by gene ID.
	Genes []string

	// Effects aligned with Genes.
	Effects []float64

	// Position maps gene ID to its index in Genes.
	Position map[string]int
}

// NewRanking orders a drug signature by effect size descending with a
// deterministic tie-break on gene ID.
func NewRanking(sig *DrugSignature) *Ranking {
	r := &Ranking{
		DrugID:   sig.DrugID,
		Context:  sig.Context,
		Genes:    make([]string, 0, len(sig.Values)),
		Effects:  make([]float64, 0, len(sig.Values)),
		Position: make(map[string]int, len(sig.Values)),
	}
	for g := range sig.Values {
		r.Genes = append(r.Genes, g)
	}
	sort.Slice(r.Genes, func(i, j int) bool {
		vi, vj := sig.Values[r.Genes[i]], sig.Values[r.Genes[j]]
		if vi != vj {
			return vi > vj
		}
		return r.Genes[i] < r.Genes[j]
	})
	for i, g := range r.Genes {
		r.Effects = append(r.Effects, sig.Values[g])
		r.Position[g] = i
	}
	return r
}

// Len returns the number of ranked genes.
func (r *Ranking) Len() int { return len(r.Genes) }

// Overlap counts how many of the given genes appear in the ranking.
func (r *Ranking) Overlap(genes []string) int {
	n := 0
	for _, g := range genes {
		if _, ok := r.Position[g]; ok {
			n++
		}
	}
	return n
}

// ApproxSize estimates the ranking's in-memory footprint in bytes, used as
// the cache cost.
func (r *Ranking) ApproxSize() int64 {
	var bytes int64
	for _, g := range r.Genes {
		// string header + bytes, effect, map entry.
		bytes += int64(3*len(g)) + 48
	}
	return bytes + 96
}
