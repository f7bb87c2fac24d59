package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/internal/fixtures"
	"github.com/xkilldash9x/trackerprobe/internal/observability"
)

func newFixturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures",
		Short: "Generate the upload fixture files into fixtures.dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			set, err := fixtures.New(cfg.Fixtures())
			if err != nil {
				return err
			}
			written, err := set.Generate()
			if err != nil {
				return fmt.Errorf("failed to generate fixtures: %w", err)
			}

			keys := make([]string, 0, len(written))
			for k := range written {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Printf("%-14s %s\n", k, written[k])
			}
			observability.GetLogger().Info("Fixtures generated", zap.String("dir", set.Dir()), zap.Int("files", len(written)))
			return nil
		},
	}
}
