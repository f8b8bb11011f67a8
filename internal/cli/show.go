package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"drink-exchange/internal/app"
)

var (
	showPairID int64
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a pair's recent price snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showPairID <= 0 {
			return fmt.Errorf("--pair is required")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			PairID: showPairID,
			Limit:  showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().Int64Var(&showPairID, "pair", 0, "Pair id to display")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of snapshots to display")
}
