// Package signature models differential-expression signatures: the
// disease-side expression profile produced by the disease-module analysis
// and the drug-side perturbational profiles. Sign convention is fixed
// throughout: up-regulated in disease (or after perturbation) is positive.
package signature

import "sort"

// DiseaseSignature is one disease's differential-expression vector.
type DiseaseSignature struct {
	DiseaseID string
	// Values maps gene ID to effect size, positive = up in disease.
	Values map[string]float64
}

// DrugSignature is one drug's differential-expression vector in one cell
// context (cell line, dose, time). A drug usually carries several.
type DrugSignature struct {
	DrugID  string
	Context string
	Values  map[string]float64
}

// GeneSets holds the up- and down-regulated query sets extracted from a
// disease signature.
type GeneSets struct {
	Up   []string
	Down []string
}

// TopGeneSets extracts the size strongest up- and down-regulated genes from
// a disease signature. Genes with effect exactly zero belong to neither set.
// Ties order by gene ID so the sets are deterministic. A size of zero or
// exceeding the signature takes every non-zero gene on the matching side.
func TopGeneSets(sig *DiseaseSignature, size int) GeneSets {
	type entry struct {
		gene   string
		effect float64
	}
	var up, down []entry
	for g, v := range sig.Values {
		switch {
		case v > 0:
			up = append(up, entry{g, v})
		case v < 0:
			down = append(down, entry{g, v})
		}
	}
	sort.Slice(up, func(i, j int) bool {
		if up[i].effect != up[j].effect {
			return up[i].effect > up[j].effect
		}
		return up[i].gene < up[j].gene
	})
	sort.Slice(down, func(i, j int) bool {
		if down[i].effect != down[j].effect {
			return down[i].effect < down[j].effect
		}
		return down[i].gene < down[j].gene
	})
	if size > 0 {
		if len(up) > size {
			up = up[:size]
		}
		if len(down) > size {
			down = down[:size]
		}
	}
	sets := GeneSets{
		Up:   make([]string, len(up)),
		Down: make([]string, len(down)),
	}
	for i, e := range up {
		sets.Up[i] = e.gene
	}
	for i, e := range down {
		sets.Down[i] = e.gene
	}
	return sets
}

// Negate returns a copy of the signature with every effect flipped. Used by
// the reversal engine's self-consistency checks.
func (s *DiseaseSignature) Negate() *DiseaseSignature {
	flipped := make(map[string]float64, len(s.Values))
	for g, v := range s.Values {
		flipped[g] = -v
	}
	return &DiseaseSignature{DiseaseID: s.DiseaseID, Values: flipped}
}
