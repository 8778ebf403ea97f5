package graph

import "sync/atomic"

// Snapshot holds the current graph behind an atomic pointer so that a data
// refresh can swap in a freshly built graph while scoring runs keep reading
// the one they started with. There is no locking: builds are single-writer,
// reads are lock-free.
type Snapshot struct {
	ptr atomic.Pointer[Graph]
	gen atomic.Uint64
}

// NewSnapshot returns a snapshot holding g at generation 1.
func NewSnapshot(g *Graph) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(g)
	s.gen.Store(1)
	return s
}

// Current returns the graph and the generation it belongs to. Callers keep
// using the returned graph for the whole run even if a swap happens
// mid-flight.
func (s *Snapshot) Current() (*Graph, uint64) {
	// Load generation first so a concurrent swap can only make the pair
	// appear newer, never stale relative to the reported generation.
	gen := s.gen.Load()
	return s.ptr.Load(), gen
}

// Swap replaces the held graph with a rebuilt one and returns the new
// generation.
func (s *Snapshot) Swap(g *Graph) uint64 {
	s.ptr.Store(g)
	return s.gen.Add(1)
}
