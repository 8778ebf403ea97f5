// Package rank defines the scored output records of the evidence-fusion
// pipeline: per-pair component scores, fused scores with uncertainty, and the
// provenance needed to recompute every number from the original inputs.
package rank

import (
	"sort"
	"time"
)

// Components holds the three per-pair evidence scores prior to fusion.
// Any of them may be missing; the fusion policy decides how missing
// components are handled.
type Components struct {
	// Propagation is the drug-level target relevance R_d derived from
	// per-gene propagation scores via drug-target edges.
	Propagation Score `json:"propagation"`

	// Developability is the externally supplied score D_d in [0, 1].
	Developability Score `json:"developability"`

	// Reversal is the connectivity tau in [-1, 1]. Negative tau means the
	// drug signature opposes the disease signature.
	Reversal Score `json:"reversal"`
}

// Interval is a two-sided uncertainty interval around a fused score.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Result is one scored drug-disease pair. It carries every component score,
// the fused score, the uncertainty interval, and full provenance.
type Result struct {
	DrugID    string `json:"drug_id"`
	DiseaseID string `json:"disease_id"`

	Components Components `json:"components"`
	Fused      Score      `json:"fused"`
	Interval   Interval   `json:"interval"`

	// PartialEvidence marks results fused from fewer than three components.
	PartialEvidence bool `json:"partial_evidence"`

	Provenance Provenance `json:"provenance"`
}

// SortResults orders results for presentation: descending fused score with a
// deterministic tie-break on ascending drug ID then disease ID. Results with
// a missing fused score sort last, also by drug then disease ID.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		fi, oki := results[i].Fused.Value()
		fj, okj := results[j].Fused.Value()
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case oki && okj && fi != fj:
			return fi > fj
		}
		if results[i].DrugID != results[j].DrugID {
			return results[i].DrugID < results[j].DrugID
		}
		return results[i].DiseaseID < results[j].DiseaseID
	})
}

// RunInfo identifies a scoring run so that materialized rows remain
// reproducible from the record alone.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	Graph      string    `json:"graph"`
	Generation uint64    `json:"generation"`
}
