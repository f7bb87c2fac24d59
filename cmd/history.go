package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/trackerprobe/internal/observability"
	"github.com/xkilldash9x/trackerprobe/internal/reporting"
)

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var (
		runID  string
		limit  int
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored runs, or re-render one with --run-id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			st, cleanup, err := provider.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if cleanup != nil {
				defer cleanup()
			}

			if runID != "" {
				report, err := st.GetReport(ctx, runID)
				if err != nil {
					return err
				}
				reporter, err := reporting.New(format, output)
				if err != nil {
					return fmt.Errorf("failed to initialize reporter: %w", err)
				}
				if err := reporter.Write(report); err != nil {
					_ = reporter.Close()
					return err
				}
				return reporter.Close()
			}

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSUITE\tSTARTED\tPASSED\tFAILED\tERRORED\tSKIPPED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.RunID, r.Suite, r.StartedAt.Local().Format(time.DateTime),
					r.Summary.Passed, r.Summary.Failed, r.Summary.Errored, r.Summary.Skipped)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Render the stored report for this run")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Report format for --run-id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for --run-id, '-' for stdout")
	return cmd
}
