package cli

import (
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage exchange events",
}

var eventCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new event (clears all price history)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EventCreate(cmd.Context())
	},
}

var eventCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Deactivate the current event",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().EventClose(cmd.Context())
	},
}

func init() {
	eventCmd.AddCommand(eventCreateCmd)
	eventCmd.AddCommand(eventCloseCmd)
}
