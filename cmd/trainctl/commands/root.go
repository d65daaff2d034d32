// Package commands holds the trainctl subcommands, which run the training
// pipeline pieces locally without the HTTP service.
package commands

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trainctl",
		Short:         "Inspect and run knowledge base training locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewExtractCmd(), NewChunkCmd(), NewIngestCmd(), NewSearchCmd(), NewIDCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}
