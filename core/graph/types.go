// Package graph provides the in-memory biological knowledge graph used by
// the scoring engines: genes and proteins as nodes, signed and sourced
// interactions as edges. A graph is built once, validated, and never mutated
// afterwards, so scoring runs can read it concurrently without locks. Data
// refreshes swap in a freshly built graph via Snapshot.
package graph

// NodeType distinguishes the biological entity classes carried by the graph.
type NodeType uint8

const (
	NodeGene NodeType = iota
	NodeProtein
)

func (t NodeType) String() string {
	switch t {
	case NodeGene:
		return "gene"
	case NodeProtein:
		return "protein"
	default:
		return "unknown"
	}
}

// Sign is the regulatory direction of an edge: +1 activating, -1 inhibiting,
// 0 unknown.
type Sign int8

const (
	SignUnknown    Sign = 0
	SignActivating Sign = 1
	SignInhibiting Sign = -1
)

// Relation is the typed interaction class of an edge.
type Relation string

const (
	RelationActivates Relation = "activates"
	RelationInhibits  Relation = "inhibits"
	RelationPhysical  Relation = "physical-interaction"
	RelationPathway   Relation = "pathway-co-membership"
)

// Undirected reports whether the relation is symmetric. Symmetric relations
// contribute adjacency in both directions even though the edge record keeps
// its original orientation.
func (r Relation) Undirected() bool {
	switch r {
	case RelationPhysical, RelationPathway:
		return true
	default:
		return false
	}
}

// Node is a gene or protein. Nodes are unique by ID.
type Node struct {
	ID      string
	Type    NodeType
	Symbol  string
	Species string
}

// Edge is a single sourced interaction record. Multiple edges between the
// same pair are retained for provenance; they are collapsed into an effective
// weight only inside adjacency construction.
type Edge struct {
	Src      string
	Dst      string
	Relation Relation
	Sign     Sign
	Direct   bool
	Source   string
	Weight   float64
}

// Direction selects which adjacency a neighbor query walks.
type Direction uint8

const (
	DirectionOut Direction = iota
	DirectionIn
)

// Neighbor is one merged adjacency entry: the effective weight over all
// parallel edges between the pair, and the net sign of their combination.
type Neighbor struct {
	ID     string
	Weight float64
	Sign   Sign
}

// Reducer chooses how parallel edges between the same ordered pair collapse
// into one effective weight.
type Reducer string

const (
	// ReducerSum adds confidence weights and caps the result, so a pair
	// supported by many sources is strong but a single hub edge cannot
	// dominate. This is the default.
	ReducerSum Reducer = "sum"

	// ReducerMax keeps the single strongest supporting edge.
	ReducerMax Reducer = "max"

	// ReducerMean averages the supporting edges.
	ReducerMean Reducer = "mean"
)

// DefaultMaxEffectiveWeight caps the summed effective weight of a merged
// multi-edge under ReducerSum.
const DefaultMaxEffectiveWeight = 1.0
