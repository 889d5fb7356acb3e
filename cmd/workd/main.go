package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "workd",
		Short:         "Queue-based work manager",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("url", "http://localhost:8000", "workd API url used by the client commands")

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newScheduleCmd(),
		newCancelCmd(),
		newAwaitCmd(),
		newHistoryCmd(),
	)
	return root
}
