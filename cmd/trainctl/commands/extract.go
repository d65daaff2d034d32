package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/aiservices/pkg/textextract"
)

func NewExtractCmd() *cobra.Command {
	var mediaType string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a file",
		Long: `Print the normalized text a training job would extract from a file.

Examples:
  trainctl extract report.pdf
  trainctl extract --type text/csv export`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textextract.NewDispatcher().Extract(args[0], mediaType)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", "", "Declared media type of the file")
	return cmd
}
