// Package evidence assembles disease seed sets from normalized
// disease-gene evidence records. Seeds are the starting distribution for
// network propagation, so their aggregation and normalization rules are
// fixed per run and recorded in provenance.
package evidence

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptySeedSet marks a disease whose evidence filtered down to no
	// usable seed genes. The disease fails fast before any propagation.
	ErrEmptySeedSet = errors.New("empty seed set")

	// ErrNegativeSeed marks an evidence record with a negative score.
	ErrNegativeSeed = errors.New("negative seed evidence score")

	// ErrNonFiniteSeed marks an evidence record with a NaN or infinite score.
	ErrNonFiniteSeed = errors.New("non-finite seed evidence score")
)

// SeedEvidence is one normalized disease-gene evidence record as delivered
// by the upstream genetics/expression pipelines.
type SeedEvidence struct {
	DiseaseID    string
	GeneID       string
	EvidenceType string
	Score        float64
	Source       string
}

// Aggregation chooses how multiple evidence records for the same gene
// collapse into one seed weight.
type Aggregation string

const (
	// AggregationMax keeps the strongest single evidence record per gene.
	// This is the default: independent weak sources should not outweigh one
	// strong genetic association.
	AggregationMax Aggregation = "max"

	AggregationMean Aggregation = "mean"
	AggregationSum  Aggregation = "sum"
)

// Normalization fixes the scale of a finished seed set. Propagation results
// are sensitive to this choice, so it travels with the set.
type Normalization string

const (
	// NormalizationSum scales weights to sum to 1, making the seed vector a
	// probability distribution. This is the default.
	NormalizationSum Normalization = "sum"

	// NormalizationMax scales weights so the strongest seed is 1.
	NormalizationMax Normalization = "max"
)

// Options configures seed-set assembly.
type Options struct {
	Aggregation   Aggregation
	Normalization Normalization

	// MinScore drops evidence records below this score before aggregation.
	MinScore float64
}

func (o Options) withDefaults() Options {
	if o.Aggregation == "" {
		o.Aggregation = AggregationMax
	}
	if o.Normalization == "" {
		o.Normalization = NormalizationSum
	}
	return o
}

// SeedSet is a finished per-disease seed distribution: non-negative gene
// weights under a fixed normalization, with the contributing sources kept
// per gene for provenance.
type SeedSet struct {
	DiseaseID     string
	Weights       map[string]float64
	Normalization Normalization
	Sources       map[string][]string
}

// Genes returns the seed gene IDs in sorted order.
func (s *SeedSet) Genes() []string {
	genes := make([]string, 0, len(s.Weights))
	for g := range s.Weights {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// BuildSeedSet aggregates the evidence records belonging to diseaseID into a
// normalized seed set. Records for other diseases are skipped. It fails fast
// on negative or non-finite scores and on an empty result, so no partially
// validated seed set ever reaches propagation.
func BuildSeedSet(diseaseID string, records []SeedEvidence, opts Options) (*SeedSet, error) {
	opts = opts.withDefaults()

	type agg struct {
		value float64
		count int
	}
	acc := make(map[string]*agg)
	sources := make(map[string]map[string]struct{})

	for _, rec := range records {
		if rec.DiseaseID != diseaseID {
			continue
		}
		if math.IsNaN(rec.Score) || math.IsInf(rec.Score, 0) {
			return nil, fmt.Errorf("%w: disease %s gene %s source %s", ErrNonFiniteSeed, diseaseID, rec.GeneID, rec.Source)
		}
		if rec.Score < 0 {
			return nil, fmt.Errorf("%w: disease %s gene %s score %v", ErrNegativeSeed, diseaseID, rec.GeneID, rec.Score)
		}
		if rec.Score < opts.MinScore {
			continue
		}

		a, ok := acc[rec.GeneID]
		if !ok {
			a = &agg{}
			acc[rec.GeneID] = a
			sources[rec.GeneID] = make(map[string]struct{})
		}
		switch opts.Aggregation {
		case AggregationMean, AggregationSum:
			a.value += rec.Score
		default:
			if rec.Score > a.value || a.count == 0 {
				a.value = rec.Score
			}
		}
		a.count++
		if rec.Source != "" {
			sources[rec.GeneID][rec.Source] = struct{}{}
		}
	}

	if len(acc) == 0 {
		return nil, fmt.Errorf("%w: disease %s", ErrEmptySeedSet, diseaseID)
	}

	weights := make(map[string]float64, len(acc))
	for gene, a := range acc {
		v := a.value
		if opts.Aggregation == AggregationMean {
			v /= float64(a.count)
		}
		weights[gene] = v
	}
	if err := normalize(weights, opts.Normalization); err != nil {
		return nil, fmt.Errorf("disease %s: %w", diseaseID, err)
	}

	set := &SeedSet{
		DiseaseID:     diseaseID,
		Weights:       weights,
		Normalization: opts.Normalization,
		Sources:       make(map[string][]string, len(sources)),
	}
	for gene, srcs := range sources {
		list := make([]string, 0, len(srcs))
		for s := range srcs {
			list = append(list, s)
		}
		sort.Strings(list)
		set.Sources[gene] = list
	}
	return set, nil
}

func normalize(weights map[string]float64, norm Normalization) error {
	var total, max float64
	for _, w := range weights {
		total += w
		if w > max {
			max = w
		}
	}

	var scale float64
	switch norm {
	case NormalizationMax:
		scale = max
	default:
		scale = total
	}
	if scale <= 0 {
		return fmt.Errorf("%w: all seed weights are zero", ErrEmptySeedSet)
	}
	inv := 1 / scale
	for gene := range weights {
		weights[gene] *= inv
	}
	return nil
}
