package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/autocat/internal/features"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
	"fjacquet/autocat/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEncoder encodes the amount as the only feature. The stub classifier
// then reports that amount as its confidence, so tests pick the confidence
// of each record through its amount.
type stubEncoder struct{}

func (stubEncoder) Encode(tx models.Transaction) (features.Vector, error) {
	switch tx.AccountID {
	case "unknown":
		return nil, &pipelineerror.UnknownCategoricalValueError{Encoder: "account", Value: tx.AccountID}
	case "broken":
		return features.Vector{1, 2}, &pipelineerror.FeatureMismatchError{Expected: 1, Got: 2}
	}
	return features.Vector{tx.Amount.InexactFloat64()}, nil
}

type stubClassifier struct{}

func (stubClassifier) Best(x []float64) (models.Prediction, error) {
	if x[0] < 0 {
		return models.Prediction{}, &pipelineerror.ClassificationError{Reason: "negative probability"}
	}
	return models.Prediction{Category: "Groceries", Confidence: x[0]}, nil
}

func (stubClassifier) TopK(x []float64, k int) ([]models.RankedPrediction, error) {
	ranked := []models.RankedPrediction{
		{Category: "Groceries", Confidence: x[0]},
		{Category: "Rent", Confidence: 1 - x[0]},
	}
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}

var now = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func record(id, confidence, account string) models.Transaction {
	return models.Transaction{
		ID:        id,
		Payee:     "Whole Foods",
		Amount:    decimal.RequireFromString(confidence),
		AccountID: account,
		Timestamp: now,
		Category:  models.CategoryUncategorized,
	}
}

func newEngine(t *testing.T, gw store.Gateway, threshold float64) (*Engine, *logging.MockLogger) {
	t.Helper()
	logger := logging.NewMockLogger()
	e, err := NewEngine(stubEncoder{}, stubClassifier{}, gw, threshold, logger)
	require.NoError(t, err)
	return e, logger
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, stubClassifier{}, nil, 0.7, nil)
	assert.Error(t, err)

	_, err = NewEngine(stubEncoder{}, nil, nil, 0.7, nil)
	assert.Error(t, err)

	for _, th := range []float64{-0.1, 1.1} {
		_, err = NewEngine(stubEncoder{}, stubClassifier{}, nil, th, nil)
		assert.Error(t, err)
	}

	e, err := NewEngine(stubEncoder{}, stubClassifier{}, nil, DefaultThreshold, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.70, e.Threshold())
}

func TestDecide_ThresholdIsStrict(t *testing.T) {
	tests := []struct {
		name       string
		confidence string
		applied    bool
	}{
		{"below", "0.69", false},
		{"exactly at threshold", "0.70", false},
		{"just above", "0.7000001", true},
		{"certain", "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := record("t1", tt.confidence, "checking")
			gw := store.NewMockGateway(tx)
			e, _ := newEngine(t, gw, 0.70)

			d, err := e.Decide(context.Background(), tx)
			require.NoError(t, err)
			assert.Equal(t, tt.applied, d.Applied)
			assert.Equal(t, "Groceries", d.Category)
			assert.Equal(t, "t1", d.TransactionID)

			if tt.applied {
				assert.Equal(t, "Groceries", gw.Applied["t1"])
			} else {
				assert.Empty(t, gw.Applied)
			}
		})
	}
}

func TestDecide_UpdateFailureIsNotApplied(t *testing.T) {
	tx := record("t1", "0.9", "checking")
	gw := store.NewMockGateway(tx)
	gw.ApplyErrors["t1"] = errors.New("disk I/O error")
	e, _ := newEngine(t, gw, 0.70)

	d, err := e.Decide(context.Background(), tx)
	require.Error(t, err)
	assert.False(t, d.Applied)
	assert.Equal(t, "Groceries", d.Category)

	var update *pipelineerror.StoreUpdateError
	assert.True(t, errors.As(err, &update))
}

func TestDecide_WithoutGateway(t *testing.T) {
	e, _ := newEngine(t, nil, 0.70)

	d, err := e.Decide(context.Background(), record("t1", "0.5", "checking"))
	require.NoError(t, err)
	assert.False(t, d.Applied)

	_, err = e.Decide(context.Background(), record("t1", "0.9", "checking"))
	var update *pipelineerror.StoreUpdateError
	assert.True(t, errors.As(err, &update))
}

func TestDecide_UnknownAccount(t *testing.T) {
	e, _ := newEngine(t, store.NewMockGateway(), 0.70)

	_, err := e.Decide(context.Background(), record("t1", "0.9", "unknown"))
	var unknown *pipelineerror.UnknownCategoricalValueError
	assert.True(t, errors.As(err, &unknown))
}

func unreadable(id string) models.Transaction {
	tx := record(id, "0", "checking")
	tx.Amount = decimal.Zero
	tx.Invalid = errors.New("invalid amount \"n/a\"")
	return tx
}

func TestDecide_UnreadableRecord(t *testing.T) {
	gw := store.NewMockGateway()
	e, _ := newEngine(t, gw, 0.70)

	_, err := e.Decide(context.Background(), unreadable("t1"))
	var invalid *pipelineerror.InvalidRecordError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "t1", invalid.TransactionID)
	assert.True(t, pipelineerror.IsRecordError(err))
	assert.Empty(t, gw.Applied)
}

func TestRunBatch_MixedOutcomes(t *testing.T) {
	gw := store.NewMockGateway(
		unreadable("unreadable-amount"),
		record("applied", "0.95", "checking"),
		record("low", "0.40", "checking"),
		record("boundary", "0.70", "checking"),
		record("unknown-account", "0.99", "unknown"),
		record("bad-distribution", "-1", "checking"),
		record("update-fails", "0.99", "checking"),
		record("also-applied", "0.80", "savings"),
	)
	gw.ApplyErrors["update-fails"] = errors.New("database is locked")
	e, logger := newEngine(t, gw, 0.70)

	summary, err := e.RunBatch(context.Background(), models.BatchFilter{Since: now})
	require.NoError(t, err)

	assert.Equal(t, models.BatchSummary{TotalConsidered: 8, AutoApplied: 2, Skipped: 3, Failed: 1}, summary)
	assert.Equal(t, 2, summary.BelowThreshold())
	assert.Equal(t, map[string]string{"applied": "Groceries", "also-applied": "Groceries"}, gw.Applied)
	assert.True(t, logger.HasEntry("WARN", "Skipping transaction that could not be classified"))
	assert.True(t, logger.HasEntry("WARN", "Failed to apply predicted category"))
}

func TestRunBatch_EmptySelection(t *testing.T) {
	gw := store.NewMockGateway(record("t1", "0.9", "checking"))
	e, _ := newEngine(t, gw, 0.70)

	summary, err := e.RunBatch(context.Background(), models.BatchFilter{IDs: []string{"does-not-exist"}})
	require.NoError(t, err)
	assert.Equal(t, models.BatchSummary{}, summary)
	assert.Empty(t, gw.Applied)
}

func TestRunBatch_FetchFailureIsFatal(t *testing.T) {
	gw := store.NewMockGateway()
	gw.FetchError = errors.New("unable to open database file")
	e, _ := newEngine(t, gw, 0.70)

	_, err := e.RunBatch(context.Background(), models.BatchFilter{Since: now})
	var access *pipelineerror.StoreAccessError
	assert.True(t, errors.As(err, &access))
}

type plainErrorGateway struct{}

func (plainErrorGateway) FetchUncategorized(context.Context, models.BatchFilter) ([]models.Transaction, error) {
	return nil, errors.New("connection refused")
}

func (plainErrorGateway) ApplyCategory(context.Context, string, string) error {
	return nil
}

func TestRunBatch_WrapsUntypedFetchError(t *testing.T) {
	e, _ := newEngine(t, plainErrorGateway{}, 0.70)

	_, err := e.RunBatch(context.Background(), models.BatchFilter{})
	var access *pipelineerror.StoreAccessError
	assert.True(t, errors.As(err, &access))
}

func TestRunBatch_FeatureMismatchStopsRun(t *testing.T) {
	gw := store.NewMockGateway(
		record("first", "0.9", "checking"),
		record("second", "0.9", "broken"),
		record("third", "0.9", "checking"),
	)
	e, _ := newEngine(t, gw, 0.70)

	summary, err := e.RunBatch(context.Background(), models.BatchFilter{Since: now})
	var mismatch *pipelineerror.FeatureMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 1, summary.AutoApplied)
	assert.Equal(t, map[string]string{"first": "Groceries"}, gw.Applied)
}

func TestRunBatch_CancelledContext(t *testing.T) {
	gw := store.NewMockGateway(record("t1", "0.9", "checking"))
	e, _ := newEngine(t, gw, 0.70)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunBatch(ctx, models.BatchFilter{Since: now})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gw.Applied)
}

func TestTopK_IsReadOnly(t *testing.T) {
	tx := record("t1", "0.9", "checking")
	gw := store.NewMockGateway(tx)
	e, _ := newEngine(t, gw, 0.70)

	ranked, err := e.TopK(tx, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Groceries", ranked[0].Category)
	assert.Empty(t, gw.Applied)

	_, err = e.TopK(record("t2", "0.9", "unknown"), 2)
	assert.Error(t, err)
}
