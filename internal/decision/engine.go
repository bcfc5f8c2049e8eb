// Package decision applies the auto-categorization policy: a prediction is
// written back to the store only when its confidence strictly exceeds the
// configured threshold.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/autocat/internal/features"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
	"fjacquet/autocat/internal/store"
)

// DefaultThreshold is the confidence a prediction must exceed to be applied.
const DefaultThreshold = 0.70

// Encoder turns a transaction into a feature vector.
type Encoder interface {
	Encode(tx models.Transaction) (features.Vector, error)
}

// Classifier ranks categories for a feature vector.
type Classifier interface {
	Best(x []float64) (models.Prediction, error)
	TopK(x []float64, k int) ([]models.RankedPrediction, error)
}

// Engine decides, per transaction, whether the predicted category is applied.
type Engine struct {
	encoder    Encoder
	classifier Classifier
	gateway    store.Gateway
	threshold  float64
	logger     logging.Logger
}

// NewEngine builds an engine. gateway may be nil when only TopK is used.
func NewEngine(encoder Encoder, classifier Classifier, gateway store.Gateway, threshold float64, logger logging.Logger) (*Engine, error) {
	if encoder == nil || classifier == nil {
		return nil, errors.New("decision engine requires an encoder and a classifier")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be within [0, 1], got %v", threshold)
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Engine{
		encoder:    encoder,
		classifier: classifier,
		gateway:    gateway,
		threshold:  threshold,
		logger:     logger,
	}, nil
}

// Threshold returns the configured confidence threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide classifies tx and applies the label when the confidence exceeds the
// threshold. Applied is true only if the store update succeeded; an update
// failure is returned as a *pipelineerror.StoreUpdateError alongside the
// decision.
func (e *Engine) Decide(ctx context.Context, tx models.Transaction) (models.Decision, error) {
	decision := models.Decision{TransactionID: tx.ID}
	if tx.Invalid != nil {
		return decision, &pipelineerror.InvalidRecordError{TransactionID: tx.ID, Err: tx.Invalid}
	}

	vec, err := e.encoder.Encode(tx)
	if err != nil {
		return decision, err
	}
	best, err := e.classifier.Best(vec)
	if err != nil {
		return decision, err
	}
	decision.Category = best.Category
	decision.Confidence = best.Confidence

	log := e.logger.WithFields(
		logging.Field{Key: logging.FieldTransactionID, Value: tx.ID},
		logging.Field{Key: logging.FieldCategory, Value: best.Category},
		logging.Field{Key: logging.FieldConfidence, Value: best.Confidence},
	)

	if best.Confidence <= e.threshold {
		log.Debug("Prediction below threshold, leaving transaction uncategorized",
			logging.Field{Key: logging.FieldThreshold, Value: e.threshold})
		return decision, nil
	}

	if e.gateway == nil {
		return decision, &pipelineerror.StoreUpdateError{TransactionID: tx.ID, Err: errors.New("no transaction store configured")}
	}
	if err := e.gateway.ApplyCategory(ctx, tx.ID, best.Category); err != nil {
		var update *pipelineerror.StoreUpdateError
		if !errors.As(err, &update) {
			err = &pipelineerror.StoreUpdateError{TransactionID: tx.ID, Err: err}
		}
		return decision, err
	}

	decision.Applied = true
	log.Info("Applied predicted category")
	return decision, nil
}

// RunBatch decides every uncategorized transaction selected by filter.
// Records that cannot be encoded or classified are skipped, failed updates
// are counted and the batch goes on. A store access error while fetching, a
// feature length mismatch or a cancelled context stops the run; updates
// already applied stay committed.
func (e *Engine) RunBatch(ctx context.Context, filter models.BatchFilter) (models.BatchSummary, error) {
	var summary models.BatchSummary
	if e.gateway == nil {
		return summary, &pipelineerror.StoreAccessError{Op: "fetch uncategorized", Err: errors.New("no transaction store configured")}
	}

	start := time.Now()
	txs, err := e.gateway.FetchUncategorized(ctx, filter)
	if err != nil {
		var access *pipelineerror.StoreAccessError
		if !errors.As(err, &access) {
			err = &pipelineerror.StoreAccessError{Op: "fetch uncategorized", Err: err}
		}
		return summary, err
	}

	summary.TotalConsidered = len(txs)
	if len(txs) == 0 {
		e.logger.Info("No uncategorized transactions to classify")
		return summary, nil
	}
	e.logger.Info("Classifying uncategorized transactions",
		logging.Field{Key: logging.FieldCount, Value: len(txs)},
		logging.Field{Key: logging.FieldThreshold, Value: e.threshold})

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		decision, err := e.Decide(ctx, tx)
		if err == nil {
			if decision.Applied {
				summary.AutoApplied++
			}
			continue
		}

		log := e.logger.WithError(err).WithField(logging.FieldTransactionID, tx.ID)
		var update *pipelineerror.StoreUpdateError
		switch {
		case errors.As(err, &update):
			summary.Failed++
			log.Warn("Failed to apply predicted category",
				logging.Field{Key: logging.FieldCategory, Value: decision.Category})
		case pipelineerror.IsRecordError(err):
			summary.Skipped++
			log.Warn("Skipping transaction that could not be classified",
				logging.Field{Key: logging.FieldAccount, Value: tx.AccountID})
		default:
			// feature length mismatches and anything unexpected stop the run
			return summary, err
		}
	}

	e.logger.Debug("Batch finished",
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	return summary, nil
}

// TopK ranks the k most likely categories for tx without touching the store.
func (e *Engine) TopK(tx models.Transaction, k int) ([]models.RankedPrediction, error) {
	vec, err := e.encoder.Encode(tx)
	if err != nil {
		return nil, err
	}
	return e.classifier.TopK(vec, k)
}
