package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/aiservices/internal/id"
)

func NewIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id <record-id>...",
		Short: "Decode embedding record ids",
		Long: `Print the node and issue time packed into embedding record ids, which
tells which process wrote a row and when.

Examples:
  trainctl id 7223860578011136001`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNODE\tISSUED")
			for _, arg := range args {
				v, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || v <= 0 {
					return fmt.Errorf("invalid record id %q", arg)
				}
				fmt.Fprintf(w, "%d\t%d\t%s\n", v, id.Node(v), id.Time(v).Format(time.RFC3339Nano))
			}
			return w.Flush()
		},
	}
}
