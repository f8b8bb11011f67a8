package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"drink-exchange/internal/app"
)

var (
	exportPairID  int64
	exportPNGPath string
	exportCSVPath string
	exportLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a pair's price history as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportPairID <= 0 {
			return fmt.Errorf("--pair is required")
		}

		opts := app.ExportOptions{
			PairID:  exportPairID,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			Limit:   exportLimit,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportPairID, "pair", 0, "Pair id to export")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Maximum snapshots to export (0 for all)")
}
