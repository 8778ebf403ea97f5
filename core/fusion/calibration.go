// Package fusion combines the three evidence channels of a drug-disease
// pair into one ranking score: propagation relevance, externally supplied
// developability, and reversal tau. Components are calibrated against a
// background population before combination, missing components are handled
// by an explicit policy, and every fused score carries a bootstrap
// uncertainty interval.
package fusion

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalibrationMethod fixes how a raw component score maps onto the common
// [0, 1] scale before weighting.
type CalibrationMethod string

const (
	// CalibrationRank maps a score to its rank position within a background
	// population of unrelated drug-disease pairs. Default.
	CalibrationRank CalibrationMethod = "rank"

	// CalibrationZScore standardizes against the background then squashes
	// through the logistic function.
	CalibrationZScore CalibrationMethod = "zscore"

	// CalibrationNone passes scores through unchanged.
	CalibrationNone CalibrationMethod = "none"
)

// Calibration is one fitted component transform. The zero value (method
// none, no background) is the identity.
type Calibration struct {
	method     CalibrationMethod
	background []float64 // sorted ascending
	mean       float64
	std        float64
}

// FitCalibration fits a transform of the given method against a background
// population. Rank and z-score calibration need at least two background
// values; with fewer, the fit degrades to the identity.
func FitCalibration(method CalibrationMethod, background []float64) *Calibration {
	c := &Calibration{method: method}
	if method == CalibrationNone || len(background) < 2 {
		c.method = CalibrationNone
		return c
	}
	c.background = append([]float64(nil), background...)
	sort.Float64s(c.background)
	c.mean, c.std = stat.MeanStdDev(c.background, nil)
	return c
}

// Apply transforms one raw score.
func (c *Calibration) Apply(x float64) float64 {
	switch c.method {
	case CalibrationRank:
		// Fraction of the background strictly below x, interpolated at
		// ties; equivalent to the empirical CDF.
		at := sort.SearchFloat64s(c.background, x)
		return float64(at) / float64(len(c.background))
	case CalibrationZScore:
		std := c.std
		if std == 0 {
			std = 1
		}
		z := (x - c.mean) / std
		return 1 / (1 + math.Exp(-z))
	default:
		return x
	}
}

// Method returns the fitted method after any degradation.
func (c *Calibration) Method() CalibrationMethod { return c.method }

// Params exposes the fitted parameters for provenance.
func (c *Calibration) Params() map[string]float64 {
	switch c.method {
	case CalibrationRank:
		return map[string]float64{"background_n": float64(len(c.background))}
	case CalibrationZScore:
		return map[string]float64{
			"background_n": float64(len(c.background)),
			"mean":         c.mean,
			"std":          c.std,
		}
	default:
		return nil
	}
}

func (c *Calibration) String() string {
	return fmt.Sprintf("calibration(%s, n=%d)", c.method, len(c.background))
}
