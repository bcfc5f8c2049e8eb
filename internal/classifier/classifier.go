// Package classifier wraps a trained model behind a validated prediction
// contract: a best label, a probability distribution over a fixed class
// order, and ranked top-K predictions.
package classifier

import (
	"fmt"
	"math"
	"sort"

	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
)

const (
	// sumTolerance is the accepted deviation of a distribution sum from 1.
	sumTolerance = 1e-6
	// renormalizeTolerance bounds the drift that is silently renormalized.
	renormalizeTolerance = 1e-3
)

// Model is any fitted classifier producing class probabilities. Classes must
// return the same order on every call; PredictProba answers in that order.
type Model interface {
	Classes() []string
	NumFeatures() int
	PredictProba(x []float64) ([]float64, error)
}

// Adapter validates the output of a Model.
type Adapter struct {
	model   Model
	classes []string
}

// NewAdapter wraps model. The model must expose at least one class and no
// duplicate class labels.
func NewAdapter(model Model) (*Adapter, error) {
	if model == nil {
		return nil, &pipelineerror.ClassificationError{Reason: "no model"}
	}
	classes := model.Classes()
	if len(classes) == 0 {
		return nil, &pipelineerror.ClassificationError{Reason: "model has no classes"}
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return nil, &pipelineerror.ClassificationError{Reason: fmt.Sprintf("duplicate class %q", c)}
		}
		seen[c] = struct{}{}
	}
	return &Adapter{model: model, classes: append([]string(nil), classes...)}, nil
}

// Classes returns the fixed class order.
func (a *Adapter) Classes() []string {
	return append([]string(nil), a.classes...)
}

// NumFeatures is the vector length the model expects.
func (a *Adapter) NumFeatures() int {
	return a.model.NumFeatures()
}

// PredictProba returns a distribution over Classes. Distributions that are
// off by less than 1e-3 are renormalized; anything worse is an error.
func (a *Adapter) PredictProba(x []float64) ([]float64, error) {
	if len(x) != a.model.NumFeatures() {
		return nil, &pipelineerror.FeatureMismatchError{Expected: a.model.NumFeatures(), Got: len(x)}
	}

	proba, err := a.model.PredictProba(x)
	if err != nil {
		return nil, &pipelineerror.ClassificationError{Reason: "model prediction failed", Err: err}
	}
	if len(proba) != len(a.classes) {
		return nil, &pipelineerror.ClassificationError{
			Reason: fmt.Sprintf("distribution has %d entries for %d classes", len(proba), len(a.classes)),
		}
	}

	var sum float64
	for i, p := range proba {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return nil, &pipelineerror.ClassificationError{
				Reason: fmt.Sprintf("invalid probability %v for class %q", p, a.classes[i]),
			}
		}
		sum += p
	}

	drift := math.Abs(sum - 1)
	if drift <= sumTolerance {
		return proba, nil
	}
	if drift > renormalizeTolerance || sum == 0 {
		return nil, &pipelineerror.ClassificationError{
			Reason: fmt.Sprintf("probabilities sum to %v", sum),
		}
	}
	out := make([]float64, len(proba))
	for i, p := range proba {
		out[i] = p / sum
	}
	return out, nil
}

// Predict returns the most probable class. Ties go to the class that comes
// first in the class order.
func (a *Adapter) Predict(x []float64) (string, error) {
	best, err := a.Best(x)
	if err != nil {
		return "", err
	}
	return best.Category, nil
}

// Best returns the most probable class and its probability.
func (a *Adapter) Best(x []float64) (models.Prediction, error) {
	proba, err := a.PredictProba(x)
	if err != nil {
		return models.Prediction{}, err
	}
	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return models.Prediction{Category: a.classes[best], Confidence: proba[best]}, nil
}

// TopK returns the k most probable classes by descending probability, ties
// kept in class order. k larger than the number of classes returns all of
// them.
func (a *Adapter) TopK(x []float64, k int) ([]models.RankedPrediction, error) {
	if k <= 0 {
		return nil, &pipelineerror.ClassificationError{Reason: fmt.Sprintf("k must be positive, got %d", k)}
	}
	proba, err := a.PredictProba(x)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.RankedPrediction, len(proba))
	for i, p := range proba {
		ranked[i] = models.RankedPrediction{Category: a.classes[i], Confidence: p}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k], nil
}
