package graph

import (
	"math"
	"sort"
)

// BuilderConfig controls how parallel edges collapse into effective
// adjacency weights.
type BuilderConfig struct {
	// Reducer merges parallel edges between the same ordered pair.
	// Defaults to ReducerSum.
	Reducer Reducer

	// MaxEffectiveWeight caps the merged weight under ReducerSum.
	// Defaults to DefaultMaxEffectiveWeight.
	MaxEffectiveWeight float64
}

func (c BuilderConfig) withDefaults() BuilderConfig {
	if c.Reducer == "" {
		c.Reducer = ReducerSum
	}
	if c.MaxEffectiveWeight <= 0 {
		c.MaxEffectiveWeight = DefaultMaxEffectiveWeight
	}
	return c
}

// Builder accumulates nodes and edges and validates them into an immutable
// Graph. A Builder is single-writer and must not be shared across
// goroutines; the Graph it produces is safe for concurrent reads.
type Builder struct {
	cfg   BuilderConfig
	nodes []Node
	edges []Edge
}

// NewBuilder returns a Builder with the given merge configuration.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg.withDefaults()}
}

// AddNode registers a node. Duplicate IDs are tolerated here and validated
// during Build, where a conflicting type becomes an input error.
func (b *Builder) AddNode(n Node) *Builder {
	b.nodes = append(b.nodes, n)
	return b
}

// AddEdge registers an edge record. Endpoints that were never registered as
// nodes are auto-registered as gene nodes during Build, matching the
// upstream loaders that derive the node set from edge endpoints.
func (b *Builder) AddEdge(e Edge) *Builder {
	b.edges = append(b.edges, e)
	return b
}

// NodeCount returns the number of node registrations accumulated so far.
func (b *Builder) NodeCount() int { return len(b.nodes) }

// EdgeCount returns the number of edge records accumulated so far.
func (b *Builder) EdgeCount() int { return len(b.edges) }

// Build validates every accumulated record and constructs the graph. On any
// validation failure it returns a *ValidationError listing all defects and
// no graph: a partially valid graph is never scored.
//
// Construction is linear in the number of edges.
func (b *Builder) Build() (*Graph, error) {
	var issues []Issue

	index := make(map[string]int32, len(b.nodes))
	nodes := make([]Node, 0, len(b.nodes))

	register := func(n Node) {
		if at, ok := index[n.ID]; ok {
			if nodes[at].Type != n.Type {
				issues = append(issues, Issue{Err: ErrDuplicateNode, Node: n.ID})
			}
			// Later registrations may fill in missing metadata.
			if nodes[at].Symbol == "" {
				nodes[at].Symbol = n.Symbol
			}
			if nodes[at].Species == "" {
				nodes[at].Species = n.Species
			}
			return
		}
		index[n.ID] = int32(len(nodes))
		nodes = append(nodes, n)
	}

	for _, n := range b.nodes {
		register(n)
	}

	for i := range b.edges {
		e := &b.edges[i]
		switch {
		case e.Src == e.Dst:
			issues = append(issues, Issue{Err: ErrSelfLoop, Edge: e})
			continue
		case math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0):
			issues = append(issues, Issue{Err: ErrNonFiniteWeight, Edge: e})
			continue
		case e.Weight < 0:
			issues = append(issues, Issue{Err: ErrNegativeWeight, Edge: e})
			continue
		}
		if _, ok := index[e.Src]; !ok {
			register(Node{ID: e.Src, Type: NodeGene, Symbol: e.Src})
		}
		if _, ok := index[e.Dst]; !ok {
			register(Node{ID: e.Dst, Type: NodeGene, Symbol: e.Dst})
		}
	}

	if len(nodes) == 0 {
		issues = append(issues, Issue{Err: ErrEmptyGraph})
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	g := &Graph{
		cfg:       b.cfg,
		nodes:     nodes,
		index:     index,
		edges:     append([]Edge(nil), b.edges...),
		pairEdges: make(map[uint64][]int32),
	}
	g.buildAdjacency()
	g.buildTransition()
	g.collectSources()
	return g, nil
}

// directedTuple is one orientation of an edge after undirected expansion.
type directedTuple struct {
	src, dst int32
	weight   float64
	signed   float64 // sign * weight, 0 when sign unknown
}

// buildAdjacency expands undirected relations into both orientations, sorts
// the tuples by (src, dst) with a two-pass counting sort, and merges runs of
// parallel edges with the configured reducer. Everything is O(E + N), and
// the resulting neighbor order is deterministic.
func (g *Graph) buildAdjacency() {
	n := int32(len(g.nodes))

	tuples := make([]directedTuple, 0, len(g.edges)*2)
	for i := range g.edges {
		e := &g.edges[i]
		src, dst := g.index[e.Src], g.index[e.Dst]
		signed := float64(e.Sign) * e.Weight
		tuples = append(tuples, directedTuple{src: src, dst: dst, weight: e.Weight, signed: signed})
		key := pairKey(src, dst)
		g.pairEdges[key] = append(g.pairEdges[key], int32(i))
		if e.Relation.Undirected() {
			tuples = append(tuples, directedTuple{src: dst, dst: src, weight: e.Weight, signed: signed})
			rkey := pairKey(dst, src)
			g.pairEdges[rkey] = append(g.pairEdges[rkey], int32(i))
		}
	}

	tuples = countingSortTuples(tuples, n, func(t directedTuple) int32 { return t.dst })
	tuples = countingSortTuples(tuples, n, func(t directedTuple) int32 { return t.src })

	out := adjacency{ptr: make([]int32, n+1)}
	for i := 0; i < len(tuples); {
		j := i
		var rawSum, rawMax, signedSum float64
		for ; j < len(tuples) && tuples[j].src == tuples[i].src && tuples[j].dst == tuples[i].dst; j++ {
			rawSum += tuples[j].weight
			if tuples[j].weight > rawMax {
				rawMax = tuples[j].weight
			}
			signedSum += tuples[j].signed
		}

		var eff float64
		switch g.cfg.Reducer {
		case ReducerMax:
			eff = rawMax
		case ReducerMean:
			eff = rawSum / float64(j-i)
		default:
			eff = rawSum
			if eff > g.cfg.MaxEffectiveWeight {
				eff = g.cfg.MaxEffectiveWeight
			}
		}
		signed := 0.0
		if rawSum > 0 {
			signed = signedSum * (eff / rawSum)
		}

		out.idx = append(out.idx, tuples[i].dst)
		out.w = append(out.w, eff)
		out.s = append(out.s, signed)
		out.ptr[tuples[i].src+1]++
		i = j
	}
	for i := int32(0); i < n; i++ {
		out.ptr[i+1] += out.ptr[i]
	}
	g.out = out
	g.in = out.reverse(n)
}

// countingSortTuples stable-sorts tuples by the given key in O(E + N).
func countingSortTuples(tuples []directedTuple, n int32, key func(directedTuple) int32) []directedTuple {
	counts := make([]int32, n+1)
	for _, t := range tuples {
		counts[key(t)+1]++
	}
	for i := int32(0); i < n; i++ {
		counts[i+1] += counts[i]
	}
	sorted := make([]directedTuple, len(tuples))
	for _, t := range tuples {
		k := key(t)
		sorted[counts[k]] = t
		counts[k]++
	}
	return sorted
}

// adjacency is a compressed sparse row layout over merged effective edges.
type adjacency struct {
	ptr []int32
	idx []int32
	w   []float64
	s   []float64
}

func (a adjacency) row(i int32) (idx []int32, w, s []float64) {
	lo, hi := a.ptr[i], a.ptr[i+1]
	return a.idx[lo:hi], a.w[lo:hi], a.s[lo:hi]
}

// reverse mirrors the adjacency so in-neighbors can be walked directly.
func (a adjacency) reverse(n int32) adjacency {
	rev := adjacency{
		ptr: make([]int32, n+1),
		idx: make([]int32, len(a.idx)),
		w:   make([]float64, len(a.w)),
		s:   make([]float64, len(a.s)),
	}
	for _, dst := range a.idx {
		rev.ptr[dst+1]++
	}
	for i := int32(0); i < n; i++ {
		rev.ptr[i+1] += rev.ptr[i]
	}
	fill := make([]int32, n)
	for src := int32(0); src < n; src++ {
		for k := a.ptr[src]; k < a.ptr[src+1]; k++ {
			dst := a.idx[k]
			at := rev.ptr[dst] + fill[dst]
			rev.idx[at] = src
			rev.w[at] = a.w[k]
			rev.s[at] = a.s[k]
			fill[dst]++
		}
	}
	return rev
}

func pairKey(src, dst int32) uint64 {
	return uint64(uint32(src))<<32 | uint64(uint32(dst))
}

// collectSources gathers the distinct edge source tags, sorted.
func (g *Graph) collectSources() {
	seen := make(map[string]struct{})
	for i := range g.edges {
		seen[g.edges[i].Source] = struct{}{}
	}
	g.sources = make([]string, 0, len(seen))
	for s := range seen {
		g.sources = append(g.sources, s)
	}
	sort.Strings(g.sources)
}
