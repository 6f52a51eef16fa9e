package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "checkstate",
		Short:         "Evaluate puzzle rule sets against variable snapshots",
		SilenceUsage: true,
	}
	root.AddCommand(evaluateCmd())
	root.AddCommand(explainCmd())
	root.AddCommand(validateCmd())
	return root
}
