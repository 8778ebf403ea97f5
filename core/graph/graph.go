package graph

// Graph is the immutable knowledge graph produced by Builder.Build. It keeps
// every raw edge record for provenance, a merged compressed-sparse-row
// adjacency in both directions, and the column-normalized transition layout
// used by the propagation engines.
//
// A Graph is never mutated after Build, so all read methods are safe for
// unsynchronized concurrent use.
type Graph struct {
	cfg   BuilderConfig
	nodes []Node
	index map[string]int32
	edges []Edge

	// pairEdges maps a directed (src, dst) pair key to the indices of the
	// raw edge records supporting it, including undirected mirrors.
	pairEdges map[uint64][]int32

	out adjacency
	in  adjacency

	transition *Transition

	sources []string
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of raw edge records retained.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Lookup returns the dense index of a node ID.
func (g *Graph) Lookup(id string) (int32, bool) {
	at, ok := g.index[id]
	return at, ok
}

// Node returns the node at a dense index.
func (g *Graph) Node(at int32) Node { return g.nodes[at] }

// NodeID returns the identifier of the node at a dense index.
func (g *Graph) NodeID(at int32) string { return g.nodes[at].ID }

// Sources returns the sorted distinct edge source tags in the graph.
func (g *Graph) Sources() []string { return g.sources }

// Neighbors returns the merged adjacency of a node in the given direction:
// one entry per neighboring node with its effective weight and net sign.
// The returned slice is freshly allocated and sorted by dense neighbor
// index, which is deterministic for a given build.
func (g *Graph) Neighbors(id string, dir Direction) []Neighbor {
	at, ok := g.index[id]
	if !ok {
		return nil
	}
	adj := g.out
	if dir == DirectionIn {
		adj = g.in
	}
	idx, w, s := adj.row(at)
	neighbors := make([]Neighbor, len(idx))
	for k := range idx {
		neighbors[k] = Neighbor{
			ID:     g.nodes[idx[k]].ID,
			Weight: w[k],
			Sign:   netSign(s[k]),
		}
	}
	return neighbors
}

// EdgesBetween returns the raw edge records supporting the directed pair
// (src, dst), including records whose undirected relation mirrors into this
// orientation. The slice aliases the graph's edge storage and must not be
// modified.
func (g *Graph) EdgesBetween(src, dst string) []Edge {
	si, ok := g.index[src]
	if !ok {
		return nil
	}
	di, ok := g.index[dst]
	if !ok {
		return nil
	}
	idxs := g.pairEdges[pairKey(si, di)]
	if len(idxs) == 0 {
		return nil
	}
	edges := make([]Edge, len(idxs))
	for k, i := range idxs {
		edges[k] = g.edges[i]
	}
	return edges
}

// Degree returns the merged out- and in-degree of a node.
func (g *Graph) Degree(id string) (out, in int) {
	at, ok := g.index[id]
	if !ok {
		return 0, 0
	}
	return int(g.out.ptr[at+1] - g.out.ptr[at]), int(g.in.ptr[at+1] - g.in.ptr[at])
}

// netSign collapses a signed effective weight back to a Sign.
func netSign(signed float64) Sign {
	switch {
	case signed > 0:
		return SignActivating
	case signed < 0:
		return SignInhibiting
	default:
		return SignUnknown
	}
}
