package rank

// Provenance records how each component of a Result was computed. Every
// field is populated by the stage that produced the component, so a consumer
// can recompute the score from the original inputs without re-running the
// pipeline blind.
type Provenance struct {
	Propagation    *PropagationProvenance    `json:"propagation,omitempty"`
	Developability *DevelopabilityProvenance `json:"developability,omitempty"`
	Reversal       *ReversalProvenance       `json:"reversal,omitempty"`
	Fusion         *FusionProvenance         `json:"fusion,omitempty"`
}

// TargetContribution is one drug-target edge's share of a drug-level
// propagation score.
type TargetContribution struct {
	TargetID  string  `json:"target_id"`
	Action    string  `json:"action"`
	Evidence  float64 `json:"evidence"`
	Relevance float64 `json:"relevance"`
	Weight    float64 `json:"weight"`
}

// PropagationProvenance explains a propagation component: the algorithm and
// its parameters, the seed handling, convergence, and the per-target
// contributions that were aggregated into the drug-level score.
type PropagationProvenance struct {
	Algorithm         string  `json:"algorithm"`
	Restart           float64 `json:"restart,omitempty"`
	Damping           float64 `json:"damping,omitempty"`
	DiffusionTime     float64 `json:"diffusion_time,omitempty"`
	Tolerance         float64 `json:"tolerance"`
	MaxIterations     int     `json:"max_iterations"`
	Iterations        int     `json:"iterations"`
	Converged         bool    `json:"converged"`
	DanglingPolicy    string  `json:"dangling_policy"`
	SeedNormalization string  `json:"seed_normalization"`
	SeedsTotal        int     `json:"seeds_total"`
	SeedsMapped       int     `json:"seeds_mapped"`

	// TargetAggregation is the rule mapping gene relevance to drug level.
	TargetAggregation string               `json:"target_aggregation"`
	Targets           []TargetContribution `json:"targets,omitempty"`

	// Sources lists the edge source tags reachable from the seeds, i.e. the
	// evidence channels that contributed mass to the relevance vector.
	Sources []string `json:"sources,omitempty"`
}

// DevelopabilityProvenance records where an externally supplied score came
// from, or that it was absent.
type DevelopabilityProvenance struct {
	Source  string `json:"source,omitempty"`
	Present bool   `json:"present"`
	Imputed bool   `json:"imputed,omitempty"`
}

// ContextTau is the reversal score computed for one cell context before
// cross-context aggregation.
type ContextTau struct {
	Context  string  `json:"context"`
	Tau      float64 `json:"tau"`
	Overlap  int     `json:"overlap"`
	UpSize   int     `json:"up_size"`
	DownSize int     `json:"down_size"`
}

// ReversalProvenance explains a connectivity component: the per-context
// statistics and the aggregation rule that collapsed them.
type ReversalProvenance struct {
	Aggregation string       `json:"aggregation"`
	WeightAlpha float64      `json:"weight_alpha"`
	MinOverlap  int          `json:"min_overlap"`
	GeneSetSize int          `json:"gene_set_size"`
	Contexts    []ContextTau `json:"contexts,omitempty"`
	LowCoverage bool         `json:"low_coverage,omitempty"`
}

// FusionProvenance explains a fused score: the weight mode and effective
// weights actually applied, the calibration method with its parameters, the
// missing-component policy taken, and the bootstrap settings behind the
// uncertainty interval.
type FusionProvenance struct {
	WeightMode        string             `json:"weight_mode"`
	EffectiveWeights  map[string]float64 `json:"effective_weights"`
	Calibration       string             `json:"calibration"`
	CalibrationParams map[string]float64 `json:"calibration_params,omitempty"`
	MissingPolicy     string             `json:"missing_policy"`
	MissingApplied    []string           `json:"missing_applied,omitempty"`
	BootstrapSamples  int                `json:"bootstrap_samples"`
	BootstrapSeed     int64              `json:"bootstrap_seed"`
}
