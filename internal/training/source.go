package training

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/autocat/internal/common"
	"fjacquet/autocat/internal/currencyutils"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"
)

// LabeledSource provides the historical, categorized transactions.
type LabeledSource interface {
	LabeledTransactions(ctx context.Context) ([]models.LabeledTransaction, error)
}

// TrainingDateRecorder persists when the model was last trained.
type TrainingDateRecorder interface {
	RecordTrainingDate(ctx context.Context, at time.Time) error
}

// CSVSource reads labeled transactions from a CSV export with the columns
// payee, description, amount, account_id and category.
type CSVSource struct {
	Path               string
	UncategorizedLabel string
	Logger             logging.Logger
}

// LabeledTransactions reads the file, parses amounts and drops rows without a
// usable label.
func (s CSVSource) LabeledTransactions(_ context.Context) ([]models.LabeledTransaction, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	label := s.UncategorizedLabel
	if label == "" {
		label = models.CategoryUncategorized
	}

	rows, err := common.ReadCSVFile[models.LabeledTransaction](s.Path, logger)
	if err != nil {
		return nil, err
	}

	out := make([]models.LabeledTransaction, 0, len(rows))
	for i, r := range rows {
		category := strings.TrimSpace(r.Category)
		if category == "" || category == label {
			continue
		}
		amount, err := currencyutils.ParseAmount(r.RawAmount)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		r.Category = category
		r.Amount = amount
		out = append(out, r)
	}
	return out, nil
}
