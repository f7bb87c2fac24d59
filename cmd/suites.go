package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/trackerprobe/internal/suites"
)

func joinNames() string { return strings.Join(suites.Names(), ", ") }

func newSuitesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "suites",
		Short: "List the available scenario suites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range suites.Names() {
				suite, err := suites.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d scenarios\t%s\n", suite.Name, len(suite.Scenarios), suite.Description)
				if !verbose {
					continue
				}
				for _, sc := range suite.Scenarios {
					fmt.Fprintf(tw, "  %s\t%s\t%s\n", sc.ID, sc.Group, sc.Title)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every scenario")
	return cmd
}
