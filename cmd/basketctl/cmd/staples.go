package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/basketwatch/backend/internal/domain"
)

var staplesCmd = &cobra.Command{
	Use:   "staples",
	Short: "List the staples tracked on every run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printStaples(cmd.OutOrStdout(), domain.Staples)
	},
}

func init() {
	rootCmd.AddCommand(staplesCmd)
}

func printStaples(w io.Writer, staples []domain.StapleDefinition) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCATEGORY\tUNIT\tSEARCH TERM")
	for _, s := range staples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Label, s.Category, s.Unit, s.SearchTerm)
	}
	return tw.Flush()
}
