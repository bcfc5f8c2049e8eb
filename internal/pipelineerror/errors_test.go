package pipelineerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "unknown categorical value",
			err:  &UnknownCategoricalValueError{Encoder: "account encoder", Value: "brokerage"},
			expected: "account encoder: unknown categorical value 'brokerage' (not present at training time)",
		},
		{
			name:     "feature mismatch",
			err:      &FeatureMismatchError{Expected: 12, Got: 10},
			expected: "feature vector length mismatch: expected 12, got 10",
		},
		{
			name:     "classification without cause",
			err:      &ClassificationError{Reason: "k must be positive"},
			expected: "classification failed: k must be positive",
		},
		{
			name:     "store update",
			err:      &StoreUpdateError{TransactionID: "T1", Err: ErrNotEligible},
			expected: "failed to update category of transaction T1: transaction is not eligible for automatic categorization",
		},
		{
			name:     "training",
			err:      &TrainingError{Stage: "fit", Err: errors.New("no rows")},
			expected: "training failed during fit: no rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestArtifactLoadError_MentionsRetraining(t *testing.T) {
	err := &ArtifactLoadError{Artifact: "text vectorizer", Path: "/models/tfidf_vectorizer.json", Err: errors.New("no such file")}

	assert.Contains(t, err.Error(), "text vectorizer")
	assert.Contains(t, err.Error(), "/models/tfidf_vectorizer.json")
	assert.Contains(t, err.Error(), "autocat train")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("database is locked")

	wrapped := []error{
		&ArtifactLoadError{Err: cause},
		&ClassificationError{Reason: "x", Err: cause},
		&StoreAccessError{Op: "fetch", Err: cause},
		&StoreUpdateError{TransactionID: "T1", Err: cause},
		&TrainingError{Stage: "load", Err: cause},
		&InvalidRecordError{TransactionID: "T1", Err: cause},
	}

	for _, err := range wrapped {
		assert.True(t, errors.Is(err, cause), "%T should unwrap to its cause", err)
	}
}

func TestIsRecordError(t *testing.T) {
	assert.True(t, IsRecordError(&UnknownCategoricalValueError{Value: "x"}))
	assert.True(t, IsRecordError(fmt.Errorf("encode T1: %w", &UnknownCategoricalValueError{Value: "x"})))
	assert.True(t, IsRecordError(&StoreUpdateError{TransactionID: "T1", Err: ErrNotEligible}))
	assert.True(t, IsRecordError(&ClassificationError{Reason: "bad"}))
	assert.True(t, IsRecordError(&InvalidRecordError{TransactionID: "T1", Err: errors.New("amount")}))

	assert.False(t, IsRecordError(&StoreAccessError{Op: "fetch", Err: errors.New("x")}))
	assert.False(t, IsRecordError(&FeatureMismatchError{Expected: 1, Got: 2}))
	assert.False(t, IsRecordError(errors.New("plain")))
}
