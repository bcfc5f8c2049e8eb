package models

import (
	"time"

	"fjacquet/autocat/internal/logging"
)

// Prediction is the classifier's top label and the probability mass it carries.
type Prediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// RankedPrediction is one entry of a top-K ranking.
type RankedPrediction struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// TopKResponse is the structured form of a ranked prediction consumed by
// external tooling.
type TopKResponse struct {
	Predictions []RankedPrediction `json:"predictions"`
}

// NewTopKResponse wraps a ranking. A nil ranking is emitted as an empty list.
func NewTopKResponse(ranked []RankedPrediction) TopKResponse {
	if ranked == nil {
		ranked = []RankedPrediction{}
	}
	return TopKResponse{Predictions: ranked}
}

// Decision is the outcome of the auto-apply policy for one transaction.
type Decision struct {
	TransactionID string  `json:"transaction_id"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Applied       bool    `json:"applied"`
}

// BatchFilter selects the uncategorized transactions of a batch run. Exactly
// one of Since or IDs is used; IDs wins when non-empty.
type BatchFilter struct {
	Since time.Time
	IDs   []string
}

// ByIDs reports whether the filter selects an explicit list of identifiers.
func (f BatchFilter) ByIDs() bool {
	return len(f.IDs) > 0
}

// BatchSummary counts the outcome of a batch run.
type BatchSummary struct {
	TotalConsidered int `json:"total_considered"`
	AutoApplied     int `json:"auto_applied"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// BelowThreshold is the number of records classified but left untouched.
func (s BatchSummary) BelowThreshold() int {
	return s.TotalConsidered - s.AutoApplied - s.Skipped - s.Failed
}

// LogSummary logs the batch counters.
func (s BatchSummary) LogSummary(logger logging.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Classification summary",
		logging.Field{Key: "total_considered", Value: s.TotalConsidered},
		logging.Field{Key: "auto_applied", Value: s.AutoApplied},
		logging.Field{Key: "below_threshold", Value: s.BelowThreshold()},
		logging.Field{Key: "skipped", Value: s.Skipped},
		logging.Field{Key: "failed", Value: s.Failed},
	)
}
