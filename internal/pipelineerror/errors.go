// Package pipelineerror defines the typed errors raised by the classification
// pipeline. Callers distinguish per-record failures from run-fatal ones with
// errors.As.
package pipelineerror

import (
	"errors"
	"fmt"
)

// ErrNotEligible is returned when a guarded category update matched no row,
// i.e. the transaction no longer carries the uncategorized sentinel.
var ErrNotEligible = errors.New("transaction is not eligible for automatic categorization")

// ArtifactLoadError reports a missing or corrupt fitted artifact. It is fatal:
// no classification can happen without a consistent artifact set.
type ArtifactLoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *ArtifactLoadError) Error() string {
	return fmt.Sprintf("failed to load artifact %s from '%s': %v (re-run 'autocat train' to regenerate the model)",
		e.Artifact, e.Path, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// UnknownCategoricalValueError reports a categorical value (an account
// identifier) that was not seen when the encoder was fitted.
type UnknownCategoricalValueError struct {
	Encoder string
	Value   string
}

func (e *UnknownCategoricalValueError) Error() string {
	return fmt.Sprintf("%s: unknown categorical value '%s' (not present at training time)", e.Encoder, e.Value)
}

// FeatureMismatchError reports a feature vector whose length differs from the
// length fixed at training time.
type FeatureMismatchError struct {
	Expected int
	Got      int
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("feature vector length mismatch: expected %d, got %d", e.Expected, e.Got)
}

// InvalidRecordError reports a stored transaction with a column that could
// not be read, such as an unparsable amount.
type InvalidRecordError struct {
	TransactionID string
	Err           error
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("transaction %s is unreadable: %v", e.TransactionID, e.Err)
}

func (e *InvalidRecordError) Unwrap() error {
	return e.Err
}

// ClassificationError reports an unusable classifier output or request.
type ClassificationError struct {
	Reason string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed: %s", e.Reason)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// StoreAccessError reports that the transaction store could not be reached
// or queried. It aborts the current run.
type StoreAccessError struct {
	Op  string
	Err error
}

func (e *StoreAccessError) Error() string {
	return fmt.Sprintf("transaction store %s failed: %v", e.Op, e.Err)
}

func (e *StoreAccessError) Unwrap() error {
	return e.Err
}

// StoreUpdateError reports a failed category update for one transaction.
// Batch runs log it and continue.
type StoreUpdateError struct {
	TransactionID string
	Err           error
}

func (e *StoreUpdateError) Error() string {
	return fmt.Sprintf("failed to update category of transaction %s: %v", e.TransactionID, e.Err)
}

func (e *StoreUpdateError) Unwrap() error {
	return e.Err
}

// TrainingError reports a failure in one stage of the offline training run.
type TrainingError struct {
	Stage string
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed during %s: %v", e.Stage, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// IsRecordError reports whether err only affects the record being processed,
// so a batch may skip the record and continue.
func IsRecordError(err error) bool {
	var unknown *UnknownCategoricalValueError
	var classification *ClassificationError
	var update *StoreUpdateError
	var invalid *InvalidRecordError
	return errors.As(err, &unknown) || errors.As(err, &classification) ||
		errors.As(err, &update) || errors.As(err, &invalid)
}
