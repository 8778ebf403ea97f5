package fusion

import (
	"math/rand"
	"sort"

	"github.com/inverno-bio/inverno/core/rank"
)

// BootstrapConfig tunes the resampling behind the uncertainty interval.
type BootstrapConfig struct {
	// Samples is the number of bootstrap draws. Default 200.
	Samples int `yaml:"samples"`

	// Seed makes the draws reproducible. Default 42.
	Seed int64 `yaml:"seed"`
}

func (c BootstrapConfig) withDefaults() BootstrapConfig {
	if c.Samples <= 0 {
		c.Samples = 200
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// Evidence is the resampleable raw material behind a pair's components:
// the per-target contributions whose weighted mean is the propagation score
// and the per-context taus whose aggregate is the reversal score. Empty
// channels do not vary under resampling.
type Evidence struct {
	// TargetContributions holds (weight, relevance) per drug target.
	TargetContributions []WeightedValue

	// ContextTaus holds the per-context reversal taus.
	ContextTaus []float64
}

// WeightedValue is one evidence atom with its aggregation weight.
type WeightedValue struct {
	Weight float64
	Value  float64
}

// bootstrapInterval resamples the contributing evidence, recomputes the
// fused score per draw, and returns the central 95% interval. With no
// resampleable evidence the interval collapses to the point estimate.
// Draws are deterministic for a given bootstrap seed.
func (f *Fuser) bootstrapInterval(c rank.Components, ev Evidence, point float64) rank.Interval {
	nTargets, nTaus := len(ev.TargetContributions), len(ev.ContextTaus)
	if nTargets < 2 && nTaus < 2 {
		return rank.Interval{Low: point, High: point}
	}

	rng := rand.New(rand.NewSource(f.cfg.Bootstrap.Seed))
	draws := make([]float64, 0, f.cfg.Bootstrap.Samples)

	for s := 0; s < f.cfg.Bootstrap.Samples; s++ {
		resampled := c

		if nTargets >= 2 {
			var wsum, vsum float64
			for k := 0; k < nTargets; k++ {
				pick := ev.TargetContributions[rng.Intn(nTargets)]
				wsum += pick.Weight
				vsum += pick.Weight * pick.Value
			}
			if wsum > 0 {
				resampled.Propagation = rank.MustNew(vsum / wsum)
			}
		}
		if nTaus >= 2 {
			taus := make([]float64, nTaus)
			for k := range taus {
				taus[k] = ev.ContextTaus[rng.Intn(nTaus)]
			}
			sort.Float64s(taus)
			mid := nTaus / 2
			m := taus[mid]
			if nTaus%2 == 0 {
				m = 0.5 * (taus[mid-1] + taus[mid])
			}
			resampled.Reversal = rank.MustNew(m)
		}

		calibrated, present := f.calibrate(resampled)
		if !present.any() {
			continue
		}
		var provScratch rank.FusionProvenance
		value, _, err := f.combine(calibrated, present, &provScratch)
		if err != nil {
			continue
		}
		draws = append(draws, value)
	}

	if len(draws) == 0 {
		return rank.Interval{Low: point, High: point}
	}
	sort.Float64s(draws)
	return rank.Interval{
		Low:  percentile(draws, 0.025),
		High: percentile(draws, 0.975),
	}
}

// percentile interpolates linearly on a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
