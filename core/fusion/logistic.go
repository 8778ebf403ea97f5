package fusion

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ErrTooFewExamples marks a training set too small to split and fit.
var ErrTooFewExamples = errors.New("too few labeled examples")

// TrainOptions tunes the logistic-regression weight learner.
type TrainOptions struct {
	// LearningRate for full-batch gradient descent. Default 0.1.
	LearningRate float64

	// Epochs of gradient descent. Default 500.
	Epochs int

	// L2 regularization strength. Default 1e-4.
	L2 float64

	// TestFraction of examples held out for evaluation. Default 0.25.
	TestFraction float64

	// Seed drives the deterministic shuffle before splitting. Default 42.
	Seed int64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	if o.Epochs <= 0 {
		o.Epochs = 500
	}
	if o.L2 < 0 {
		o.L2 = 0
	} else if o.L2 == 0 {
		o.L2 = 1e-4
	}
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		o.TestFraction = 0.25
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}

// LogisticModel is a fitted weight learner over calibrated components. Its
// probability replaces the linear fusion formula when learned weights are
// enabled; the standardized coefficient shares are exported so results stay
// explainable as effective weights.
type LogisticModel struct {
	Features  []string  `json:"features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`

	AUC              float64 `json:"auc"`
	AveragePrecision float64 `json:"average_precision"`
	TrainExamples    int     `json:"train_examples"`
	TestExamples     int     `json:"test_examples"`
}

// TrainLogistic fits a logistic regression on labeled historical
// repurposing outcomes. features is row-major with one row per example,
// aligned with featureNames; labels are 1 for approved/trialed pairs and 0
// otherwise. The split and descent are deterministic for a given seed.
func TrainLogistic(featureNames []string, features [][]float64, labels []int, opts TrainOptions) (*LogisticModel, error) {
	opts = opts.withDefaults()
	n := len(features)
	if n != len(labels) {
		return nil, fmt.Errorf("features %d and labels %d differ in length", n, len(labels))
	}
	if n < 4 {
		return nil, fmt.Errorf("%w: %d", ErrTooFewExamples, n)
	}
	dim := len(featureNames)
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("example %d has %d features, want %d", i, len(row), dim)
		}
	}

	perm := rand.New(rand.NewSource(opts.Seed)).Perm(n)
	testN := int(float64(n) * opts.TestFraction)
	if testN < 1 {
		testN = 1
	}
	trainIdx, testIdx := perm[testN:], perm[:testN]

	coef := make([]float64, dim)
	var intercept float64
	grad := make([]float64, dim)

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for d := range grad {
			grad[d] = 0
		}
		var gradB float64
		for _, i := range trainIdx {
			p := sigmoid(dot(coef, features[i]) + intercept)
			err := p - float64(labels[i])
			for d := range grad {
				grad[d] += err * features[i][d]
			}
			gradB += err
		}
		scale := opts.LearningRate / float64(len(trainIdx))
		for d := range coef {
			coef[d] -= scale * (grad[d] + opts.L2*coef[d])
		}
		intercept -= scale * gradB
	}

	m := &LogisticModel{
		Features:      append([]string(nil), featureNames...),
		Coef:          coef,
		Intercept:     intercept,
		TrainExamples: len(trainIdx),
		TestExamples:  len(testIdx),
	}

	// Evaluate on the held-out split; degrade to the full set when the
	// split holds a single class and the metrics would be undefined.
	evalIdx := testIdx
	if singleClass(labels, testIdx) {
		evalIdx = perm
	}
	scores := make([]float64, len(evalIdx))
	truth := make([]int, len(evalIdx))
	for k, i := range evalIdx {
		scores[k] = m.Predict(features[i])
		truth[k] = labels[i]
	}
	m.AUC = rocAUC(scores, truth)
	m.AveragePrecision = averagePrecision(scores, truth)
	return m, nil
}

// Predict returns the model probability for one calibrated component row.
func (m *LogisticModel) Predict(x []float64) float64 {
	return sigmoid(dot(m.Coef, x) + m.Intercept)
}

// EffectiveWeights normalizes absolute coefficients to sum 1, the
// explainable counterpart of fixed fusion weights.
func (m *LogisticModel) EffectiveWeights() map[string]float64 {
	var total float64
	for _, c := range m.Coef {
		total += math.Abs(c)
	}
	out := make(map[string]float64, len(m.Features))
	for i, name := range m.Features {
		if total > 0 {
			out[name] = math.Abs(m.Coef[i]) / total
		} else {
			out[name] = 0
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func singleClass(labels []int, idx []int) bool {
	pos := 0
	for _, i := range idx {
		pos += labels[i]
	}
	return pos == 0 || pos == len(idx)
}

// rocAUC is the Mann-Whitney formulation: the probability a random positive
// outscores a random negative, ties counting half.
func rocAUC(scores []float64, labels []int) float64 {
	var pairs, wins float64
	for i := range scores {
		if labels[i] != 1 {
			continue
		}
		for j := range scores {
			if labels[j] != 0 {
				continue
			}
			pairs++
			switch {
			case scores[i] > scores[j]:
				wins++
			case scores[i] == scores[j]:
				wins += 0.5
			}
		}
	}
	if pairs == 0 {
		return math.NaN()
	}
	return wins / pairs
}

// averagePrecision averages precision at each positive hit down the
// descending score order.
func averagePrecision(scores []float64, labels []int) float64 {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var hits, precSum float64
	for at, i := range order {
		if labels[i] == 1 {
			hits++
			precSum += hits / float64(at+1)
		}
	}
	if hits == 0 {
		return math.NaN()
	}
	return precSum / hits
}
