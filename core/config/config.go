// Package config holds the runtime configuration of the scoring pipeline.
// Values layer in fixed order: built-in defaults, then the YAML file, then
// INVERNO_* environment variables. The loaded config is validated before it
// is published; a live pipeline never sees a half-applied or invalid config.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/inverno-bio/inverno/core/batch"
	"github.com/inverno-bio/inverno/core/evidence"
	"github.com/inverno-bio/inverno/core/fusion"
	"github.com/inverno-bio/inverno/core/graph"
	"github.com/inverno-bio/inverno/core/propagate"
	"github.com/inverno-bio/inverno/core/reversal"
)

type Config struct {
	Graph       GraphConfig       `yaml:"graph"`
	Seeds       SeedsConfig       `yaml:"seeds"`
	Propagation PropagationConfig `yaml:"propagation"`
	Reversal    ReversalConfig    `yaml:"reversal"`
	Fusion      FusionConfig      `yaml:"fusion"`
	Batch       BatchConfig       `yaml:"batch"`
	Store       StoreConfig       `yaml:"store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type GraphConfig struct {
	Reducer            string  `yaml:"reducer" validate:"oneof=sum max mean"`
	MaxEffectiveWeight float64 `yaml:"max_effective_weight" validate:"gt=0"`
}

type SeedsConfig struct {
	Aggregation   string  `yaml:"aggregation" validate:"oneof=max mean sum"`
	Normalization string  `yaml:"normalization" validate:"oneof=sum max"`
	MinScore      float64 `yaml:"min_score" validate:"gte=0"`
}

type PropagationConfig struct {
	Algorithm     string  `yaml:"algorithm" validate:"oneof=rwr heat pagerank"`
	Restart       float64 `yaml:"restart" validate:"gt=0,lt=1"`
	Damping       float64 `yaml:"damping" validate:"gt=0,lt=1"`
	Time          float64 `yaml:"time" validate:"gt=0"`
	TaylorTerms   int     `yaml:"taylor_terms" validate:"gt=0"`
	Tolerance     float64 `yaml:"tolerance" validate:"gt=0"`
	MaxIterations int     `yaml:"max_iterations" validate:"gt=0"`
	Dangling      string  `yaml:"dangling" validate:"oneof=redistribute selftrap drop"`
	Signed        bool    `yaml:"signed"`
}

type ReversalConfig struct {
	GeneSetSize int     `yaml:"gene_set_size" validate:"gt=0"`
	WeightAlpha float64 `yaml:"weight_alpha" validate:"gt=0"`
	MinOverlap  int     `yaml:"min_overlap" validate:"gt=0"`
	Aggregation string  `yaml:"aggregation" validate:"oneof=median best-coverage extreme"`
	CacheMB     int64   `yaml:"cache_mb" validate:"gt=0"`
}

type FusionConfig struct {
	Weights       WeightsConfig `yaml:"weights"`
	WeightMode    string        `yaml:"weight_mode" validate:"oneof=fixed learned"`
	Calibration   string        `yaml:"calibration" validate:"oneof=rank zscore none"`
	MissingPolicy string        `yaml:"missing_policy" validate:"oneof=renormalize impute"`
	Impute        ImputeConfig  `yaml:"impute"`
	Bootstrap     BootstrapYAML `yaml:"bootstrap"`

	// ModelPath points at a trained logistic model (JSON) backing the
	// learned weight mode. Empty under fixed weights.
	ModelPath string `yaml:"model_path"`
}

type WeightsConfig struct {
	Propagation    float64 `yaml:"propagation" validate:"gte=0"`
	Developability float64 `yaml:"developability" validate:"gte=0"`
	Reversal       float64 `yaml:"reversal" validate:"gte=0"`
}

type ImputeConfig struct {
	Propagation    float64 `yaml:"propagation" validate:"gte=0,lte=1"`
	Developability float64 `yaml:"developability" validate:"gte=0,lte=1"`
	Reversal       float64 `yaml:"reversal" validate:"gte=0,lte=1"`
}

type BootstrapYAML struct {
	Samples int   `yaml:"samples" validate:"gt=0"`
	Seed    int64 `yaml:"seed"`
}

type BatchConfig struct {
	Workers  int  `yaml:"workers" validate:"gt=0"`
	MemoSize int  `yaml:"memo_size" validate:"gt=0"`
	FailFast bool `yaml:"fail_fast"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration every load starts from.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			Reducer:            string(graph.ReducerSum),
			MaxEffectiveWeight: graph.DefaultMaxEffectiveWeight,
		},
		Seeds: SeedsConfig{
			Aggregation:   string(evidence.AggregationMax),
			Normalization: string(evidence.NormalizationSum),
		},
		Propagation: PropagationConfig{
			Algorithm:     "rwr",
			Restart:       0.2,
			Damping:       0.85,
			Time:          0.5,
			TaylorTerms:   30,
			Tolerance:     1e-6,
			MaxIterations: 100,
			Dangling:      string(propagate.DanglingRedistribute),
		},
		Reversal: ReversalConfig{
			GeneSetSize: 150,
			WeightAlpha: 1,
			MinOverlap:  10,
			Aggregation: string(reversal.AggregationMedian),
			CacheMB:     64,
		},
		Fusion: FusionConfig{
			Weights:       WeightsConfig{Propagation: 0.5, Developability: 0.3, Reversal: 0.2},
			WeightMode:    string(fusion.WeightModeFixed),
			Calibration:   string(fusion.CalibrationRank),
			MissingPolicy: string(fusion.MissingRenormalize),
			Impute:        ImputeConfig{Propagation: 0.5, Developability: 0.5, Reversal: 0.5},
			Bootstrap:     BootstrapYAML{Samples: 200, Seed: 42},
		},
		Batch: BatchConfig{
			Workers:  4,
			MemoSize: 128,
		},
		Store: StoreConfig{
			Path: ".inverno/inverno.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var validate = validator.New()

// Validate checks every constraint tag. The error lists the first offending
// field in config-file terms.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config field %s: failed %q constraint",
				verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// Builder converts to the graph package's builder settings.
func (c GraphConfig) Builder() graph.BuilderConfig {
	return graph.BuilderConfig{
		Reducer:            graph.Reducer(c.Reducer),
		MaxEffectiveWeight: c.MaxEffectiveWeight,
	}
}

// Options converts to the evidence package's seed-set settings.
func (c SeedsConfig) Options() evidence.Options {
	return evidence.Options{
		Aggregation:   evidence.Aggregation(c.Aggregation),
		Normalization: evidence.Normalization(c.Normalization),
		MinScore:      c.MinScore,
	}
}

// Params converts to the propagation package's parameters.
func (c PropagationConfig) Params() propagate.Params {
	return propagate.Params{
		Restart:       c.Restart,
		Damping:       c.Damping,
		Time:          c.Time,
		TaylorTerms:   c.TaylorTerms,
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		Dangling:      propagate.DanglingPolicy(c.Dangling),
		Signed:        c.Signed,
	}
}

// ScorerConfig converts to the reversal package's settings.
func (c ReversalConfig) ScorerConfig() reversal.Config {
	return reversal.Config{
		GeneSetSize: c.GeneSetSize,
		WeightAlpha: c.WeightAlpha,
		MinOverlap:  c.MinOverlap,
		Aggregation: reversal.Aggregation(c.Aggregation),
		CacheMB:     c.CacheMB,
	}
}

// FuserConfig converts to the fusion package's settings. The caller supplies
// the trained model when the weight mode is learned.
func (c FusionConfig) FuserConfig(model *fusion.LogisticModel) fusion.Config {
	return fusion.Config{
		Weights: fusion.Weights{
			Propagation:    c.Weights.Propagation,
			Developability: c.Weights.Developability,
			Reversal:       c.Weights.Reversal,
		},
		WeightMode:    fusion.WeightMode(c.WeightMode),
		Calibration:   fusion.CalibrationMethod(c.Calibration),
		MissingPolicy: fusion.MissingPolicy(c.MissingPolicy),
		Impute: fusion.ImputeDefaults{
			Propagation:    c.Impute.Propagation,
			Developability: c.Impute.Developability,
			Reversal:       c.Impute.Reversal,
		},
		Bootstrap: fusion.BootstrapConfig{
			Samples: c.Bootstrap.Samples,
			Seed:    c.Bootstrap.Seed,
		},
		Model: model,
	}
}

// RunnerConfig converts to the batch package's settings.
func (c *Config) RunnerConfig() batch.Config {
	return batch.Config{
		Workers:     c.Batch.Workers,
		MemoSize:    c.Batch.MemoSize,
		FailFast:    c.Batch.FailFast,
		Propagation: c.Propagation.Params(),
	}
}

// NewLogger builds the process logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
