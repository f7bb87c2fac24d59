package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
	"github.com/xkilldash9x/trackerprobe/internal/config"
	"github.com/xkilldash9x/trackerprobe/internal/fixtures"
	"github.com/xkilldash9x/trackerprobe/internal/observability"
	"github.com/xkilldash9x/trackerprobe/internal/probe"
	"github.com/xkilldash9x/trackerprobe/internal/reporting"
	"github.com/xkilldash9x/trackerprobe/internal/suites"
)

// ErrMismatch is returned with --fail-on-mismatch when a scenario failed or errored.
var ErrMismatch = errors.New("one or more scenarios did not pass")

type runOptions struct {
	suite          string
	baseURL        string
	format         string
	output         string
	headless       bool
	persist        bool
	failOnMismatch bool
	skipPreflight  bool
}

func newRunCmd(deps dependencies) *cobra.Command {
	opts := &runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario suite against the assignment tracker",
		Long: `Runs every scenario of the chosen suite in order inside one browser session
and writes a report. Scenario failures do not change the exit code unless
--fail-on-mismatch is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg, opts); err != nil {
				return err
			}
			return runProbe(ctx, logger, cfg, opts, deps)
		},
	}

	runCmd.Flags().StringVarP(&opts.suite, "suite", "s", suites.NameE2E, fmt.Sprintf("Suite to run (%s)", joinNames()))
	runCmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Base URL of the app under test. (Overrides config/env)")
	runCmd.Flags().StringVarP(&opts.format, "format", "f", "", "Report format: text, json, junit or xlsx. (Overrides config/env)")
	runCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Report output path, '-' for stdout. (Overrides config/env)")
	runCmd.Flags().BoolVar(&opts.headless, "headless", true, "Run the browser without a window. (Overrides config/env)")
	runCmd.Flags().BoolVar(&opts.persist, "persist", false, "Store the report in PostgreSQL (database.url).")
	runCmd.Flags().BoolVar(&opts.failOnMismatch, "fail-on-mismatch", false, "Exit non-zero when any scenario failed or errored.")
	runCmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Do not check that the target answers before starting the browser.")

	return runCmd
}

// applyRunFlagOverrides copies explicitly set flags onto cfg and revalidates.
func applyRunFlagOverrides(cmd *cobra.Command, cfg config.Interface, opts *runOptions) error {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.SetTargetBaseURL(opts.baseURL)
	}
	if flags.Changed("headless") {
		cfg.SetBrowserHeadless(opts.headless)
	}
	if flags.Changed("format") {
		cfg.SetReportFormat(opts.format)
	}
	if flags.Changed("output") {
		cfg.SetReportOutput(opts.output)
	}

	if v, ok := cfg.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid flag override: %w", err)
		}
	}
	return nil
}

// runProbe contains the core, testable logic of the run command.
func runProbe(ctx context.Context, logger *zap.Logger, cfg config.Interface, opts *runOptions, deps dependencies) error {
	suite, err := suites.Lookup(opts.suite)
	if err != nil {
		return err
	}
	baseURL := cfg.Target().BaseURL

	// Build the reporter first so a bad output path fails before the browser starts.
	reporter, err := reporting.New(cfg.Report().Format, cfg.Report().Output)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	fixtureSet, err := fixtures.New(cfg.Fixtures())
	if err != nil {
		return fmt.Errorf("failed to resolve fixtures: %w", err)
	}

	if !opts.skipPreflight {
		info, err := deps.checker.Preflight(ctx, baseURL, logger)
		if err != nil {
			return fmt.Errorf("preflight failed: %w", err)
		}
		if !info.HasRoot {
			logger.Warn("Target page has no #root mount node. Is this the assignment tracker?", zap.String("title", info.Title))
		}
	}

	session, cleanup, err := deps.sessions.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open browser session: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	logger.Info("Starting run",
		zap.String("suite", suite.Name),
		zap.String("base_url", baseURL),
		zap.Int("scenarios", len(suite.Scenarios)),
	)
	runner := probe.NewRunner(session, cfg, fixtureSet, logger)
	report := runner.RunSuite(ctx, suite)

	if err := reporter.Write(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if !reporting.IsStdout(cfg.Report().Output) {
		logger.Info("Report successfully written to file", zap.String("path", cfg.Report().Output))
	}

	if opts.persist {
		if err := persistReport(ctx, logger, cfg, deps.stores, report); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}
	if opts.failOnMismatch && !report.Summary().OK() {
		return ErrMismatch
	}
	return nil
}

func persistReport(ctx context.Context, logger *zap.Logger, cfg config.Interface, provider storeProvider, report *schemas.Report) error {
	// The report should be saved even after an interrupt.
	ctx = context.WithoutCancel(ctx)

	st, cleanup, err := provider.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := st.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}
	logger.Info("Report persisted", zap.String("run_id", report.RunID))
	return nil
}
