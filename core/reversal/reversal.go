// Package reversal scores whether a drug's perturbational expression
// signature opposes a disease's expression signature. The statistic is a
// weighted Kolmogorov-Smirnov connectivity score: the disease's up- and
// down-regulated gene sets are located within the drug's ranked signature,
// their running-sum enrichments are combined into a tau in [-1, 1], and
// per-context taus are aggregated by a configured, provenance-recorded rule.
// Negative tau means reversal, the desired direction.
package reversal

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/dgraph-io/ristretto"

	"github.com/inverno-bio/inverno/core/rank"
	"github.com/inverno-bio/inverno/core/signature"
)

// Aggregation selects how per-context taus collapse into one drug-level tau.
type Aggregation string

const (
	// AggregationMedian takes the median tau across contexts. Default.
	AggregationMedian Aggregation = "median"

	// AggregationBestCoverage keeps the tau from the context whose ranking
	// covers the most disease genes.
	AggregationBestCoverage Aggregation = "best-coverage"

	// AggregationExtreme keeps the tau with the largest magnitude.
	AggregationExtreme Aggregation = "extreme"
)

// Config tunes the connectivity scorer.
type Config struct {
	// GeneSetSize bounds the disease up/down query sets. Default 150.
	GeneSetSize int

	// WeightAlpha is the exponent on |effect| in the weighted running sum.
	// Default 1.
	WeightAlpha float64

	// MinOverlap is the minimum number of disease genes that must appear in
	// a drug ranking for the context to count. Below it the context is
	// skipped; if every context is skipped the drug's tau is missing, never
	// zero. Default 10.
	MinOverlap int

	// Aggregation is the cross-context rule. Default median.
	Aggregation Aggregation

	// CacheMB bounds the drug-ranking cache. Rankings are reused across
	// every disease scored against the same drug context. Default 64.
	CacheMB int64
}

func (c Config) withDefaults() Config {
	if c.GeneSetSize <= 0 {
		c.GeneSetSize = 150
	}
	if c.WeightAlpha <= 0 {
		c.WeightAlpha = 1
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = 10
	}
	switch c.Aggregation {
	case AggregationMedian, AggregationBestCoverage, AggregationExtreme:
	default:
		c.Aggregation = AggregationMedian
	}
	if c.CacheMB <= 0 {
		c.CacheMB = 64
	}
	return c
}

// Detail is the provenance of one reversal score: every context that was
// scored, the aggregation rule, and whether coverage fell short.
type Detail struct {
	Aggregation Aggregation
	Contexts    []rank.ContextTau
	Skipped     int
	LowCoverage bool
}

// Scorer computes connectivity taus. It is safe for concurrent use; the
// only shared state is the ranking cache, which is concurrency-safe.
type Scorer struct {
	cfg    Config
	cache  *ristretto.Cache
	logger *slog.Logger
}

// NewScorer builds a scorer with a ranking cache sized from the config.
func NewScorer(cfg Config, logger *slog.Logger) (*Scorer, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 16,
		MaxCost:     cfg.CacheMB << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ranking cache: %w", err)
	}
	return &Scorer{cfg: cfg, cache: cache, logger: logger}, nil
}

// Config returns the effective configuration after defaulting.
func (s *Scorer) Config() Config { return s.cfg }

// Close releases the ranking cache.
func (s *Scorer) Close() {
	s.cache.Close()
}

// Score computes the aggregated reversal tau of one drug against one
// disease. Contexts whose rankings cover fewer than MinOverlap disease
// genes are skipped; when no context has coverage the returned score is
// missing and Detail.LowCoverage is set. That state is a warning for the
// caller, not an error.
func (s *Scorer) Score(disease *signature.DiseaseSignature, sigs []signature.DrugSignature) (rank.Score, Detail, error) {
	detail := Detail{Aggregation: s.cfg.Aggregation}
	if len(sigs) == 0 {
		detail.LowCoverage = true
		return rank.Missing(), detail, nil
	}

	sets := signature.TopGeneSets(disease, s.cfg.GeneSetSize)
	if len(sets.Up)+len(sets.Down) == 0 {
		detail.LowCoverage = true
		return rank.Missing(), detail, nil
	}

	ordered := append([]signature.DrugSignature(nil), sigs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Context < ordered[j].Context })

	for i := range ordered {
		r := s.ranking(&ordered[i])
		overlap := r.Overlap(sets.Up) + r.Overlap(sets.Down)
		if overlap < s.cfg.MinOverlap {
			detail.Skipped++
			continue
		}
		tau := connectivityTau(r, sets, s.cfg.WeightAlpha)
		detail.Contexts = append(detail.Contexts, rank.ContextTau{
			Context:  ordered[i].Context,
			Tau:      tau,
			Overlap:  overlap,
			UpSize:   len(sets.Up),
			DownSize: len(sets.Down),
		})
	}

	if len(detail.Contexts) == 0 {
		detail.LowCoverage = true
		s.logger.Debug("reversal score below coverage threshold",
			"disease", disease.DiseaseID,
			"drug", ordered[0].DrugID,
			"contexts_skipped", detail.Skipped)
		return rank.Missing(), detail, nil
	}

	agg := aggregate(detail.Contexts, s.cfg.Aggregation)
	score, err := rank.New(agg)
	if err != nil {
		return rank.Missing(), detail, fmt.Errorf("drug %s: %w", ordered[0].DrugID, err)
	}
	return score, detail, nil
}

// ranking fetches or computes the cached rank transform of one drug
// signature.
func (s *Scorer) ranking(sig *signature.DrugSignature) *signature.Ranking {
	key := sig.DrugID + "\x00" + sig.Context
	if v, ok := s.cache.Get(key); ok {
		if r, ok := v.(*signature.Ranking); ok && r.Len() == len(sig.Values) {
			return r
		}
	}
	r := signature.NewRanking(sig)
	s.cache.Set(key, r, r.ApproxSize())
	return r
}

// aggregate collapses context taus by the configured rule.
func aggregate(contexts []rank.ContextTau, rule Aggregation) float64 {
	switch rule {
	case AggregationBestCoverage:
		best := contexts[0]
		for _, c := range contexts[1:] {
			if c.Overlap > best.Overlap {
				best = c
			}
		}
		return best.Tau
	case AggregationExtreme:
		best := contexts[0]
		for _, c := range contexts[1:] {
			if math.Abs(c.Tau) > math.Abs(best.Tau) {
				best = c
			}
		}
		return best.Tau
	default:
		taus := make([]float64, len(contexts))
		for i, c := range contexts {
			taus[i] = c.Tau
		}
		return median(taus)
	}
}

func median(xs []float64) float64 {
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return 0.5 * (cp[mid-1] + cp[mid])
}

// connectivityTau combines the up- and down-set enrichments. When both
// enrichments point the same way the connectivity is null (tau 0); when
// they oppose, tau is their half-difference. Positive tau means the drug
// pushes expression the same way as the disease, negative means it reverses
// it.
func connectivityTau(r *signature.Ranking, sets signature.GeneSets, alpha float64) float64 {
	esUp, okUp := enrichment(r, sets.Up, alpha)
	esDown, okDown := enrichment(r, sets.Down, alpha)

	switch {
	case okUp && okDown:
		if (esUp >= 0) == (esDown >= 0) {
			return 0
		}
		tau := (esUp - esDown) / 2
		return clamp(tau, -1, 1)
	case okUp:
		return clamp(esUp, -1, 1)
	case okDown:
		return clamp(-esDown, -1, 1)
	default:
		return 0
	}
}

// enrichment is the weighted KS running-sum statistic of one gene set
// within the ranking: hits step up proportional to |effect|^alpha, misses
// step down uniformly, and the extreme deviation is the enrichment. The
// boolean is false when the set has no gene in the ranking.
func enrichment(r *signature.Ranking, set []string, alpha float64) (float64, bool) {
	inSet := make(map[string]struct{}, len(set))
	hits := 0
	var totalHitWeight float64
	for _, g := range set {
		if pos, ok := r.Position[g]; ok {
			inSet[g] = struct{}{}
			hits++
			totalHitWeight += math.Pow(math.Abs(r.Effects[pos]), alpha)
		}
	}
	if hits == 0 {
		return 0, false
	}

	misses := r.Len() - hits
	missStep := 0.0
	if misses > 0 {
		missStep = 1 / float64(misses)
	}
	// All ranked genes are hits: the set is trivially enriched everywhere.
	if misses == 0 {
		return 1, true
	}
	// Degenerate all-zero effects fall back to the unweighted statistic.
	uniform := totalHitWeight == 0

	var running, extreme float64
	for i, g := range r.Genes {
		if _, ok := inSet[g]; ok {
			if uniform {
				running += 1 / float64(hits)
			} else {
				running += math.Pow(math.Abs(r.Effects[i]), alpha) / totalHitWeight
			}
		} else {
			running -= missStep
		}
		if math.Abs(running) > math.Abs(extreme) {
			extreme = running
		}
	}
	return extreme, true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
