package fusion

import (
	"fmt"
	"log/slog"

	"github.com/inverno-bio/inverno/core/rank"
)

// MissingPolicy fixes what happens when a component score is absent. The
// choice is explicit configuration, never an incidental zero.
type MissingPolicy string

const (
	// MissingRenormalize drops the absent term and rescales the remaining
	// weights proportionally to sum 1. Default.
	MissingRenormalize MissingPolicy = "renormalize"

	// MissingImpute substitutes the configured default value for the absent
	// component and keeps the weights unchanged.
	MissingImpute MissingPolicy = "impute"
)

// WeightMode selects between the fixed linear formula and a trained model.
type WeightMode string

const (
	WeightModeFixed   WeightMode = "fixed"
	WeightModeLearned WeightMode = "learned"
)

// ImputeDefaults are the substitute values used under MissingImpute, on the
// calibrated [0, 1] scale.
type ImputeDefaults struct {
	Propagation    float64 `yaml:"propagation"`
	Developability float64 `yaml:"developability"`
	Reversal       float64 `yaml:"reversal"`
}

// DefaultImputeDefaults sits every absent component at the uninformative
// midpoint.
func DefaultImputeDefaults() ImputeDefaults {
	return ImputeDefaults{Propagation: 0.5, Developability: 0.5, Reversal: 0.5}
}

// Config assembles a Fuser.
type Config struct {
	Weights       Weights
	WeightMode    WeightMode
	Calibration   CalibrationMethod
	MissingPolicy MissingPolicy
	Impute        ImputeDefaults
	Bootstrap     BootstrapConfig

	// Model backs WeightModeLearned: its probability replaces the linear
	// formula, and its coefficient shares become the effective weights
	// reported in provenance.
	Model *LogisticModel
}

func (c Config) withDefaults() Config {
	if c.WeightMode == "" {
		c.WeightMode = WeightModeFixed
	}
	if c.Calibration == "" {
		c.Calibration = CalibrationRank
	}
	if c.MissingPolicy == "" {
		c.MissingPolicy = MissingRenormalize
	}
	if c.Impute == (ImputeDefaults{}) {
		c.Impute = DefaultImputeDefaults()
	}
	c.Bootstrap = c.Bootstrap.withDefaults()
	return c
}

// Backgrounds are populations of raw component scores from unrelated
// drug-disease pairs, used to fit per-component calibration so channels on
// different scales cannot dominate by magnitude.
type Backgrounds struct {
	Propagation    []float64
	Developability []float64
	Reversal       []float64
}

// Fuser combines component scores. Construct once per run; Fuse is a pure
// function of its inputs, safe for concurrent use after calibration.
type Fuser struct {
	cfg    Config
	logger *slog.Logger

	calPropagation    *Calibration
	calDevelopability *Calibration
	calReversal       *Calibration
}

// NewFuser validates the configuration and returns an uncalibrated fuser
// (identity calibration until FitCalibration is called).
func NewFuser(cfg Config, logger *slog.Logger) (*Fuser, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WeightMode == WeightModeFixed {
		if err := cfg.Weights.Validate(); err != nil {
			return nil, err
		}
	} else if cfg.Model == nil {
		return nil, fmt.Errorf("weight mode %q requires a trained model", cfg.WeightMode)
	}

	identity := FitCalibration(CalibrationNone, nil)
	return &Fuser{
		cfg:               cfg,
		logger:            logger,
		calPropagation:    identity,
		calDevelopability: identity,
		calReversal:       identity,
	}, nil
}

// MissingPolicy reports the configured missing-component policy.
func (f *Fuser) MissingPolicy() MissingPolicy { return f.cfg.MissingPolicy }

// FitCalibration fits the per-component transforms against background
// populations. Reversal backgrounds are supplied as raw taus; the fuser
// orients them to the reversal-positive scale itself.
func (f *Fuser) FitCalibration(bg Backgrounds) {
	f.calPropagation = FitCalibration(f.cfg.Calibration, bg.Propagation)
	f.calDevelopability = FitCalibration(f.cfg.Calibration, bg.Developability)
	f.calReversal = FitCalibration(f.cfg.Calibration, negateAll(bg.Reversal))
}

// Fused is one pair's fusion outcome.
type Fused struct {
	Score           rank.Score
	Interval        rank.Interval
	PartialEvidence bool
	Provenance      rank.FusionProvenance
}

// Fuse combines one pair's components. Reversal enters as raw tau and is
// negated internally so that reversal (the desired direction) contributes
// positively. Missing components follow the configured policy; a pair with
// every component missing is an error.
func (f *Fuser) Fuse(c rank.Components, ev Evidence) (*Fused, error) {
	calibrated, present := f.calibrate(c)

	if !present.any() {
		return nil, ErrNoComponents
	}

	prov := rank.FusionProvenance{
		WeightMode:       string(f.cfg.WeightMode),
		Calibration:      string(f.cfg.Calibration),
		MissingPolicy:    string(f.cfg.MissingPolicy),
		BootstrapSamples: f.cfg.Bootstrap.Samples,
		BootstrapSeed:    f.cfg.Bootstrap.Seed,
	}
	prov.CalibrationParams = map[string]float64{}
	for prefix, cal := range map[string]*Calibration{
		"propagation":    f.calPropagation,
		"developability": f.calDevelopability,
		"reversal":       f.calReversal,
	} {
		for k, v := range cal.Params() {
			prov.CalibrationParams[prefix+"_"+k] = v
		}
	}
	prov.MissingApplied = present.missingNames()

	value, effective, err := f.combine(calibrated, present, &prov)
	if err != nil {
		return nil, err
	}
	prov.EffectiveWeights = effective

	score, err := rank.New(value)
	if err != nil {
		return nil, fmt.Errorf("fused score: %w", err)
	}

	interval := f.bootstrapInterval(c, ev, value)

	return &Fused{
		Score:           score,
		Interval:        interval,
		PartialEvidence: !present.all(),
		Provenance:      prov,
	}, nil
}

// calibratedComponents are the post-calibration values on the common scale,
// with reversal already oriented so larger means more reversal.
type calibratedComponents struct {
	propagation    float64
	developability float64
	reversal       float64
}

type presence struct {
	propagation    bool
	developability bool
	reversal       bool
}

func (p presence) any() bool { return p.propagation || p.developability || p.reversal }
func (p presence) all() bool { return p.propagation && p.developability && p.reversal }

func (p presence) missingNames() []string {
	var names []string
	if !p.propagation {
		names = append(names, "propagation")
	}
	if !p.developability {
		names = append(names, "developability")
	}
	if !p.reversal {
		names = append(names, "reversal")
	}
	return names
}

func (f *Fuser) calibrate(c rank.Components) (calibratedComponents, presence) {
	var out calibratedComponents
	var has presence
	if v, ok := c.Propagation.Value(); ok {
		out.propagation = f.calPropagation.Apply(v)
		has.propagation = true
	}
	if v, ok := c.Developability.Value(); ok {
		out.developability = f.calDevelopability.Apply(v)
		has.developability = true
	}
	if v, ok := c.Reversal.Value(); ok {
		out.reversal = f.calReversal.Apply(-v)
		has.reversal = true
	}
	return out, has
}

// combine applies the weight mode over calibrated components, resolving
// missing ones per policy.
func (f *Fuser) combine(c calibratedComponents, has presence, prov *rank.FusionProvenance) (float64, map[string]float64, error) {
	imputed := c
	if !has.propagation {
		imputed.propagation = f.cfg.Impute.Propagation
	}
	if !has.developability {
		imputed.developability = f.cfg.Impute.Developability
	}
	if !has.reversal {
		imputed.reversal = f.cfg.Impute.Reversal
	}

	if f.cfg.WeightMode == WeightModeLearned {
		// The model consumes a full feature row, so absent components use
		// the imputed defaults regardless of policy.
		row := []float64{imputed.propagation, imputed.developability, imputed.reversal}
		return f.cfg.Model.Predict(row), f.cfg.Model.EffectiveWeights(), nil
	}

	weights := f.cfg.Weights
	values := imputed
	if f.cfg.MissingPolicy == MissingRenormalize && !has.all() {
		renorm, err := weights.Renormalize(has.propagation, has.developability, has.reversal)
		if err != nil {
			return 0, nil, err
		}
		weights = renorm
		values = c // absent terms carry zero weight, imputation irrelevant
	}

	value := weights.Propagation*values.propagation +
		weights.Developability*values.developability +
		weights.Reversal*values.reversal
	return value, weights.asMap(), nil
}

func negateAll(xs []float64) []float64 {
	if xs == nil {
		return nil
	}
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = -v
	}
	return out
}
