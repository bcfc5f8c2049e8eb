// Package classify handles the classification commands: batch auto-apply over
// the store and the read-only top-k query.
package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"fjacquet/autocat/cmd/root"
	"fjacquet/autocat/internal/currencyutils"
	"fjacquet/autocat/internal/dateutils"
	"fjacquet/autocat/internal/logging"
	"fjacquet/autocat/internal/models"

	"github.com/spf13/cobra"
)

var (
	// IDs selects an explicit list of transactions instead of a date.
	IDs []string
	// TopK switches to the read-only ranking mode.
	TopK bool
	// K is the number of categories returned in top-k mode.
	K int
	// Threshold overrides classification.confidence_threshold.
	Threshold float64
)

// Cmd represents the classify command
var Cmd = &cobra.Command{
	Use:   "classify [since]",
	Short: "Classify uncategorized transactions",
	Long: `Classify uncategorized transactions and write back every prediction whose
confidence exceeds the threshold.

Transactions are selected either by a lower bound on their posting date
(YYYY-MM-DD, other common date layouts or unix seconds) or by an explicit
--ids list. With --topk nothing is written: the k most likely categories of a
single transaction are printed as JSON. Negative amounts are accepted as they
are; "--" before the positional arguments works as well.

A batch run prints "<n> transactions were auto-categorized" on stdout.

Examples:
  autocat classify 2024-03-01
  autocat classify --ids tx1,tx2,tx3 --threshold 0.8
  autocat classify --topk "Whole Foods" "weekly shop" -54.20 checking --k 3`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if TopK {
			root.Quiet()
		}
		return nil
	},
	RunE: classifyFunc,
}

func init() {
	Cmd.Flags().StringSliceVar(&IDs, "ids", nil, "Comma-separated transaction IDs to classify")
	Cmd.Flags().BoolVar(&TopK, "topk", false, "Print the top-k categories for <payee> <description> <amount> <account>")
	Cmd.Flags().IntVar(&K, "k", 0, "Number of categories returned by --topk (default: classification.top_k)")
	Cmd.Flags().Float64Var(&Threshold, "threshold", 0, "Confidence threshold override in [0, 1]")
}

func classifyFunc(cmd *cobra.Command, args []string) error {
	switch {
	case TopK:
		if len(IDs) > 0 {
			return errors.New("--topk cannot be combined with --ids")
		}
		if len(args) != 4 {
			return fmt.Errorf("--topk expects <payee> <description> <amount> <account>, got %d argument(s)", len(args))
		}
		return runTopK(cmd, args)
	case len(IDs) > 0:
		if len(args) > 0 {
			return errors.New("--ids cannot be combined with a since timestamp")
		}
		return runBatch(cmd, models.BatchFilter{IDs: IDs})
	case len(args) == 1:
		since, err := dateutils.ParseSince(args[0])
		if err != nil {
			return err
		}
		return runBatch(cmd, models.BatchFilter{Since: since})
	default:
		return errors.New("expected a since timestamp, --ids or --topk")
	}
}

func thresholdOverride(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	return &Threshold
}

func runBatch(cmd *cobra.Command, filter models.BatchFilter) error {
	logger := root.GetLogger()

	engine, err := root.AppContainer.NewEngine(true, thresholdOverride(cmd))
	if err != nil {
		return err
	}

	summary, err := engine.RunBatch(cmd.Context(), filter)
	summary.LogSummary(logger)
	fmt.Fprintf(cmd.OutOrStdout(), "%d transactions were auto-categorized\n", summary.AutoApplied)
	if err != nil {
		return fmt.Errorf("classification stopped after %d transaction(s): %w", summary.TotalConsidered, err)
	}
	if summary.Failed > 0 {
		logger.Warn("Some predicted categories could not be written",
			logging.Field{Key: logging.FieldCount, Value: summary.Failed})
	}
	return nil
}

func runTopK(cmd *cobra.Command, args []string) error {
	amount, err := currencyutils.ParseAmount(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[2], err)
	}
	k := K
	if !cmd.Flags().Changed("k") {
		k = root.AppContainer.GetConfig().Classification.TopK
	}

	engine, err := root.AppContainer.NewEngine(false, thresholdOverride(cmd))
	if err != nil {
		return err
	}
	ranked, err := engine.TopK(models.Transaction{
		Payee:       args[0],
		Description: args[1],
		Amount:      amount,
		AccountID:   args[3],
	}, k)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), models.NewTopKResponse(ranked))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}
