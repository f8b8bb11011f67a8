package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var undoPairID int64

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Out-of-band snapshot corrections",
}

var snapshotUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Remove a pair's most recent snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if undoPairID <= 0 {
			return fmt.Errorf("--pair is required")
		}
		return getApp().SnapshotUndo(cmd.Context(), undoPairID)
	},
}

func init() {
	snapshotUndoCmd.Flags().Int64Var(&undoPairID, "pair", 0, "Pair id to correct")
	snapshotCmd.AddCommand(snapshotUndoCmd)
}
