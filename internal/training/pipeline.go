// Package training fits the text vectorizer, account encoder, amount scaler
// and classifier from labeled transactions and writes them as an artifact
// set.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"fjacquet/autocat/internal/artifacts"
	"fjacquet/autocat/internal/classifier"
	"fjacquet/autocat/internal/common"
	"fjacquet/autocat/internal/features"
	"fjacquet/autocat/internal/forest"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
	"fjacquet/autocat/internal/textnorm"
)

// DefaultTestSize is the share of samples held out for evaluation.
const DefaultTestSize = 0.2

// Options configures a training run.
type Options struct {
	Vectorizer features.VectorizerOptions
	Forest     forest.Options
	// TestSize is the held-out share in (0, 1).
	TestSize float64
	// ReportFile, when set, receives the evaluation report as CSV.
	ReportFile string
}

// DefaultOptions mirrors the settings the model was designed with.
func DefaultOptions() Options {
	return Options{
		Vectorizer: features.DefaultVectorizerOptions(),
		Forest:     forest.DefaultOptions(),
		TestSize:   DefaultTestSize,
	}
}

// Result is the outcome of a training run.
type Result struct {
	Set     *artifacts.Set
	Report  *Report // nil when too few samples were available to hold some out
	Samples int
}

// Pipeline trains artifact sets.
type Pipeline struct {
	normalizer *textnorm.Normalizer
	opts       Options
	logger     logging.Logger
	now        func() time.Time
}

// NewPipeline validates opts and returns a pipeline.
func NewPipeline(normalizer *textnorm.Normalizer, opts Options, logger logging.Logger) (*Pipeline, error) {
	if normalizer == nil {
		return nil, errors.New("training requires a text normalizer")
	}
	if !(opts.TestSize > 0 && opts.TestSize < 1) {
		return nil, fmt.Errorf("test size must be within (0, 1), got %v", opts.TestSize)
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Pipeline{normalizer: normalizer, opts: opts, logger: logger, now: time.Now}, nil
}

// Run loads the labeled data, fits a new artifact set, saves it to
// outputDir, writes the optional report and records the training date.
// recorder may be nil.
func (p *Pipeline) Run(ctx context.Context, source LabeledSource, outputDir string, recorder TrainingDateRecorder) (*Result, error) {
	start := time.Now()

	samples, err := source.LabeledTransactions(ctx)
	if err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "load", Err: err}
	}
	p.logger.Info("Loaded labeled transactions", logging.Field{Key: logging.FieldCount, Value: len(samples)})

	result, err := p.Fit(samples)
	if err != nil {
		return nil, err
	}

	if err := artifacts.Save(outputDir, result.Set); err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "save", Err: err}
	}
	p.logger.Info("Saved model artifacts",
		logging.Field{Key: logging.FieldDirectory, Value: outputDir},
		logging.Field{Key: logging.FieldFingerprint, Value: result.Set.Manifest.Fingerprint})

	if result.Report != nil {
		result.Report.Log(p.logger)
		if p.opts.ReportFile != "" {
			if err := common.WriteCSVFile(result.Report.Rows(), p.opts.ReportFile, p.logger); err != nil {
				return nil, &pipelineerror.TrainingError{Stage: "report", Err: err}
			}
		}
	}

	if recorder != nil {
		if err := recorder.RecordTrainingDate(ctx, result.Set.Manifest.CreatedAt); err != nil {
			p.logger.WithError(err).Warn("Model saved but the training date could not be recorded")
		}
	}

	p.logger.Info("Training complete",
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return result, nil
}

// Fit trains an artifact set in memory. The preprocessing components are
// fitted on every sample; the classifier only on the training split.
func (p *Pipeline) Fit(samples []models.LabeledTransaction) (*Result, error) {
	if len(samples) == 0 {
		return nil, &pipelineerror.TrainingError{Stage: "load", Err: errors.New("no labeled transactions to train on")}
	}

	txs := make([]models.Transaction, len(samples))
	docs := make([]string, len(samples))
	accounts := make([]string, len(samples))
	amounts := make([]float64, len(samples))
	labels := make([]string, len(samples))
	for i, s := range samples {
		txs[i] = s.AsTransaction()
		docs[i] = txs[i].CombinedText()
		accounts[i] = s.AccountID
		amounts[i] = s.Amount.InexactFloat64()
		labels[i] = s.Category
	}

	encoder, err := p.fitEncoder(docs, accounts, amounts)
	if err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "preprocess", Err: err}
	}
	vectors, err := encoder.EncodeAll(txs)
	if err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "encode", Err: err}
	}
	x := make([][]float64, len(vectors))
	for i, v := range vectors {
		x[i] = v
	}

	trainIdx, testIdx := p.split(len(samples))
	p.logger.Info("Training classifier",
		logging.Field{Key: "train_size", Value: len(trainIdx)},
		logging.Field{Key: "test_size", Value: len(testIdx)},
		logging.Field{Key: "features", Value: encoder.NumFeatures()})

	model, err := forest.Fit(pick(x, trainIdx), pick(labels, trainIdx), p.opts.Forest)
	if err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "fit", Err: err}
	}

	result := &Result{Samples: len(samples)}
	if len(testIdx) > 0 {
		report, err := evaluate(model, pick(x, testIdx), pick(labels, testIdx))
		if err != nil {
			return nil, &pipelineerror.TrainingError{Stage: "evaluate", Err: err}
		}
		report.TrainSize = len(trainIdx)
		result.Report = &report
	} else {
		p.logger.Warn("Too few labeled transactions to hold out an evaluation set",
			logging.Field{Key: logging.FieldCount, Value: len(samples)})
	}

	set, err := artifacts.NewSet(encoder, model, len(samples), p.now())
	if err != nil {
		return nil, &pipelineerror.TrainingError{Stage: "package", Err: err}
	}
	result.Set = set
	return result, nil
}

func (p *Pipeline) fitEncoder(docs, accounts []string, amounts []float64) (*features.Encoder, error) {
	vectorizer, err := features.NewTfidfVectorizer(p.normalizer, p.opts.Vectorizer)
	if err != nil {
		return nil, err
	}
	if err := vectorizer.Fit(docs); err != nil {
		return nil, err
	}
	accountEncoder, err := features.FitLabelEncoder(features.AccountEncoderName, accounts)
	if err != nil {
		return nil, err
	}
	scaler, err := features.FitStandardScaler(amounts)
	if err != nil {
		return nil, err
	}
	return features.NewEncoder(vectorizer, accountEncoder, scaler)
}

// split shuffles the sample indices with the forest seed and holds out
// ceil(n * TestSize) of them. Fewer than two samples are all used for
// training.
func (p *Pipeline) split(n int) (train, test []int) {
	rng := rand.New(rand.NewSource(p.opts.Forest.Seed))
	perm := rng.Perm(n)

	nTest := int(math.Ceil(float64(n) * p.opts.TestSize))
	if n < 2 || nTest >= n {
		return perm, nil
	}
	return perm[nTest:], perm[:nTest]
}

func evaluate(model *forest.Forest, x [][]float64, actual []string) (Report, error) {
	adapter, err := classifier.NewAdapter(model)
	if err != nil {
		return Report{}, err
	}
	predicted := make([]string, len(x))
	for i, row := range x {
		label, err := adapter.Predict(row)
		if err != nil {
			return Report{}, err
		}
		predicted[i] = label
	}
	return Evaluate(actual, predicted), nil
}

func pick[T any](values []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
