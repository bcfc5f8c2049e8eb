// Package count reports how many transactions are waiting for a category
package count

import (
	"fmt"

	"fjacquet/autocat/cmd/root"
	"fjacquet/autocat/internal/dateutils"
	"fjacquet/autocat/internal/logging"

	"github.com/spf13/cobra"
)

// Cmd represents the count command
var Cmd = &cobra.Command{
	Use:   "count",
	Short: "Count uncategorized transactions",
	Long: `Print the number of transactions still carrying the uncategorized label.
The date of the last training run is logged when one was recorded.`,
	Args: cobra.NoArgs,
	RunE: countFunc,
}

func countFunc(cmd *cobra.Command, args []string) error {
	s, err := root.AppContainer.GetStore()
	if err != nil {
		return err
	}

	n, err := s.CountUncategorized(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)

	at, ok, err := s.TrainingDate(cmd.Context())
	if err != nil {
		root.GetLogger().WithError(err).Warn("Could not read the training date")
		return nil
	}
	if ok {
		root.GetLogger().Info("Classifier last trained",
			logging.Field{Key: "date", Value: dateutils.ToISODate(at)})
	}
	return nil
}
