// Package batch orchestrates scoring runs: per-disease propagation fan-out,
// per-pair reversal and fusion, failure isolation, and assembly of ranked,
// provenance-complete results. All heavy computation happens in the leaf
// packages; batch owns concurrency and bookkeeping only.
package batch

import (
	"fmt"

	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/signature"
)

// DrugTargetEdge is one harmonized drug-target record.
type DrugTargetEdge struct {
	DrugID   string
	TargetID string
	Action   string // agonist|antagonist|inhibitor|activator|unknown
	Evidence float64
}

// DrugInput bundles everything known about one drug entering a run.
type DrugInput struct {
	DrugID     string
	Targets    []DrugTargetEdge
	Signatures []signature.DrugSignature

	// Developability is the externally computed score, missing when the
	// safety-analytics pipeline has none for this drug.
	Developability       rank.Score
	DevelopabilitySource string
}

// DiseaseInput bundles one disease's seed set and expression signature.
// Signature may be nil; reversal scores are then missing for every pair of
// this disease.
type DiseaseInput struct {
	Seeds     *evidence.SeedSet
	Signature *signature.DiseaseSignature
}

// ID returns the disease identifier.
func (d DiseaseInput) ID() string {
	if d.Seeds != nil {
		return d.Seeds.DiseaseID
	}
	if d.Signature != nil {
		return d.Signature.DiseaseID
	}
	return ""
}

// Failure records one isolated per-disease or per-pair breakdown. Failures
// never abort sibling computations; they are collected onto the batch
// result.
type Failure struct {
	DiseaseID string
	DrugID    string
	Stage     string
	Err       error
}

func (f Failure) String() string {
	if f.DrugID == "" {
		return fmt.Sprintf("%s/%s: %v", f.Stage, f.DiseaseID, f.Err)
	}
	return fmt.Sprintf("%s/%s/%s: %v", f.Stage, f.DiseaseID, f.DrugID, f.Err)
}

// Result is one finished batch: ranked pair results plus every isolated
// failure, under the run identity that makes rows reproducible.
type Result struct {
	Run      rank.RunInfo
	Results  []rank.Result
	Failures []Failure
}
