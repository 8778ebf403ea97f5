package graph

// Transition is the column-normalized sparse transition layout consumed by
// the propagation engines. Row j lists the nodes that receive mass from j,
// with Prob holding w(j->i) / outWeight(j), so the mass leaving each
// non-dangling node sums to exactly 1.
//
// Dangling lists nodes with no merged out-weight; the propagation engine's
// dangling policy decides where their mass goes.
//
// The layout is flat slices so the hot matvec loop stays allocation-free.
type Transition struct {
	N        int
	Ptr      []int32
	Idx      []int32
	Prob     []float64
	SignProb []float64
	Dangling []int32
}

// Transition returns the propagation layout built alongside the graph.
// The returned struct aliases graph-owned storage and must be treated as
// read-only.
func (g *Graph) Transition() *Transition {
	return g.transition
}

// buildTransition normalizes the merged out-adjacency by each row's total
// out-weight. Rows with zero out-weight become dangling nodes rather than a
// divide-by-zero.
func (g *Graph) buildTransition() {
	n := int32(len(g.nodes))
	t := &Transition{
		N:        int(n),
		Ptr:      g.out.ptr,
		Idx:      g.out.idx,
		Prob:     make([]float64, len(g.out.w)),
		SignProb: make([]float64, len(g.out.s)),
	}

	for i := int32(0); i < n; i++ {
		lo, hi := g.out.ptr[i], g.out.ptr[i+1]
		var total float64
		for k := lo; k < hi; k++ {
			total += g.out.w[k]
		}
		if total <= 0 {
			t.Dangling = append(t.Dangling, i)
			continue
		}
		inv := 1 / total
		for k := lo; k < hi; k++ {
			t.Prob[k] = g.out.w[k] * inv
			t.SignProb[k] = g.out.s[k] * inv
		}
	}
	g.transition = t
}
