// Package train handles the model training command
package train

import (
	"fmt"
	"path/filepath"
	"strings"

	"fjacquet/autocat/cmd/root"
	"fjacquet/autocat/internal/artifacts"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/store"
	"fjacquet/autocat/internal/training"

	"github.com/spf13/cobra"
)

var (
	// Source is a SQLite database or a .csv export of labeled transactions.
	Source string
	// Output is the artifact directory.
	Output string
	// Report is the evaluation report CSV.
	Report string
)

// Cmd represents the train command
var Cmd = &cobra.Command{
	Use:   "train",
	Short: "Train the transaction classifier",
	Long: `Train the classifier on already categorized transactions and save the
model artifacts.

The source defaults to the configured database. A path ending in .csv is read
as an export with the columns payee, description, amount, account_id and
category. Training on the database also records the training date in it.

Example:
  autocat train --source data/user_data.db --output data/model --report metrics.csv`,
	Args: cobra.NoArgs,
	RunE: trainFunc,
}

func init() {
	Cmd.Flags().StringVarP(&Source, "source", "s", "", "SQLite database or CSV file with labeled transactions (default: store.path)")
	Cmd.Flags().StringVarP(&Output, "output", "o", "", "Artifact output directory (default: artifacts.directory)")
	Cmd.Flags().StringVarP(&Report, "report", "r", "", "Write the evaluation report to this CSV file (default: training.report_file)")
}

func trainFunc(cmd *cobra.Command, args []string) error {
	c := root.AppContainer
	cfg := c.GetConfig()
	logger := root.GetLogger()

	output := Output
	if output == "" {
		output = cfg.Artifacts.Directory
	}
	if Report != "" {
		cfg.Training.ReportFile = Report
	}

	if artifacts.Exists(output) {
		logger.Info("Replacing existing model", logging.Field{Key: logging.FieldDirectory, Value: output})
	}

	pipeline, err := c.NewTrainingPipeline()
	if err != nil {
		return err
	}

	source, recorder, closeSource, err := openSource(Source)
	if err != nil {
		return err
	}
	defer closeSource()

	result, err := pipeline.Run(cmd.Context(), source, output, recorder)
	if err != nil {
		return err
	}

	fields := []logging.Field{
		{Key: logging.FieldCount, Value: result.Samples},
		{Key: logging.FieldFingerprint, Value: result.Set.Manifest.Fingerprint},
		{Key: "classes", Value: len(result.Set.Manifest.Classes)},
	}
	if result.Report != nil {
		fields = append(fields, logging.Field{Key: "accuracy", Value: fmt.Sprintf("%.4f", result.Report.Accuracy)})
	}
	logger.Info("Model trained", fields...)
	return nil
}

// openSource resolves the training source. CSV exports have no training
// date to record.
func openSource(path string) (training.LabeledSource, training.TrainingDateRecorder, func(), error) {
	c := root.AppContainer
	cfg := c.GetConfig()
	logger := root.GetLogger()
	noop := func() {}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		logger.Info("Training from CSV export", logging.Field{Key: logging.FieldSource, Value: path})
		return training.CSVSource{
			Path:               path,
			UncategorizedLabel: cfg.Store.UncategorizedLabel,
			Logger:             logger,
		}, nil, noop, nil
	}

	if path == "" || filepath.Clean(path) == filepath.Clean(cfg.Store.Path) {
		s, err := c.GetStore()
		if err != nil {
			return nil, nil, noop, err
		}
		return s, s, noop, nil
	}

	logger.Info("Training from database", logging.Field{Key: logging.FieldSource, Value: path})
	s, err := store.Open(path, c.StoreOptions(), logger)
	if err != nil {
		return nil, nil, noop, err
	}
	return s, s, func() { _ = s.Close() }, nil
}
