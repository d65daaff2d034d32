package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/aiservices/pkg/chunker"
	"github.com/nikhilbhutani/aiservices/pkg/textextract"
)

func NewChunkCmd() *cobra.Command {
	var (
		mediaType string
		size      int
		overlap   int
	)

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Print the chunk windows of a file",
		Long: `Extract a file and print the offsets of every chunk it splits into.

Examples:
  trainctl chunk notes.txt
  trainctl chunk --size 500 --overlap 50 manual.docx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
			if err != nil {
				return err
			}
			text, err := textextract.NewDispatcher().Extract(args[0], mediaType)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tSTART\tEND\tTOKENS")
			for _, c := range ch.Chunk(text, nil) {
				fmt.Fprintf(w, "%d\t%d\t%d\t%v\n", c.Index, c.Start, c.End, c.Metadata["token_count"])
			}
			return w.Flush()
		},
	}

	defaults := chunker.DefaultConfig()
	cmd.Flags().StringVar(&mediaType, "type", "", "Declared media type of the file")
	cmd.Flags().IntVar(&size, "size", defaults.Size, "Chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", defaults.Overlap, "Overlap between chunks in characters")
	return cmd
}
