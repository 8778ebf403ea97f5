package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfLoop marks an edge whose source and destination are the same
	// node. Self-loops are rejected at build time.
	ErrSelfLoop = errors.New("self-loop edge")

	// ErrDuplicateNode marks two node registrations sharing an ID but
	// disagreeing on type.
	ErrDuplicateNode = errors.New("duplicate node id with conflicting type")

	// ErrNegativeWeight marks an edge with a negative confidence weight.
	ErrNegativeWeight = errors.New("negative edge weight")

	// ErrNonFiniteWeight marks an edge whose weight is NaN or infinite.
	ErrNonFiniteWeight = errors.New("non-finite edge weight")

	// ErrEmptyGraph marks a build with no nodes and no edges.
	ErrEmptyGraph = errors.New("graph has no nodes")
)

// ValidationError aggregates every defect found during Build. No partial
// graph is returned alongside it.
type ValidationError struct {
	Issues []Issue
}

// Issue is a single build-time defect with enough context to locate the
// offending input record.
type Issue struct {
	Err  error
	Node string
	Edge *Edge
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("graph validation failed: %s", e.Issues[0].describe())
	}
	return fmt.Sprintf("graph validation failed: %d issues, first: %s",
		len(e.Issues), e.Issues[0].describe())
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue.Err
	}
	return errs
}

func (i Issue) describe() string {
	switch {
	case i.Edge != nil:
		return fmt.Sprintf("%v (edge %s -> %s, source %s)", i.Err, i.Edge.Src, i.Edge.Dst, i.Edge.Source)
	case i.Node != "":
		return fmt.Sprintf("%v (node %s)", i.Err, i.Node)
	default:
		return i.Err.Error()
	}
}
