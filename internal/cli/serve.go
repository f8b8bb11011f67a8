package cli

import (
	"github.com/spf13/cobra"

	"drink-exchange/internal/app"
)

var serveInMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pricing service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context(), app.ServeOptions{InMemory: serveInMemory})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "Run against in-memory storage with a demo market")
}
