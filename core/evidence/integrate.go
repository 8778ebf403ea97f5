package evidence

import "math"

// ChannelWeights balances the genetic and expression evidence channels when
// both exist for a disease. The defaults weight expression evidence 0.6 and
// genetic evidence 0.4.
type ChannelWeights struct {
	Genetic    float64
	Expression float64
}

// DefaultChannelWeights returns the standard 0.4 / 0.6 split.
func DefaultChannelWeights() ChannelWeights {
	return ChannelWeights{Genetic: 0.4, Expression: 0.6}
}

// IntegrateChannels combines per-gene genetic association scores with
// per-gene expression-module scores into one combined score in [0, 1].
// Each channel is min-max scaled independently before the weighted sum, so a
// channel measured on a larger scale cannot dominate by magnitude alone.
// Genes present in only one channel keep that channel's scaled score at its
// full channel weight renormalized, rather than being diluted by an implied
// zero in the absent channel.
func IntegrateChannels(genetic, expression map[string]float64, w ChannelWeights) map[string]float64 {
	if w.Genetic <= 0 && w.Expression <= 0 {
		w = DefaultChannelWeights()
	}
	gScaled := minMaxScale(genetic)
	eScaled := minMaxScale(expression)

	combined := make(map[string]float64, len(gScaled)+len(eScaled))
	for gene, gv := range gScaled {
		if ev, ok := eScaled[gene]; ok {
			combined[gene] = (w.Genetic*gv + w.Expression*ev) / (w.Genetic + w.Expression)
		} else {
			combined[gene] = gv
		}
	}
	for gene, ev := range eScaled {
		if _, ok := gScaled[gene]; !ok {
			combined[gene] = ev
		}
	}
	return combined
}

// minMaxScale maps values onto [0, 1]. A constant channel maps to 1 so that
// presence still counts as evidence.
func minMaxScale(values map[string]float64) map[string]float64 {
	if len(values) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scaled := make(map[string]float64, len(values))
	if hi == lo {
		for g := range values {
			scaled[g] = 1
		}
		return scaled
	}
	inv := 1 / (hi - lo)
	for g, v := range values {
		scaled[g] = (v - lo) * inv
	}
	return scaled
}
