// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trackerprobe/internal/config"
	"github.com/xkilldash9x/trackerprobe/internal/observability"
)

type contextKey string

// configKey stores the validated config in the command context.
const configKey contextKey = "config"

// rootOptions holds the persistent flag values.
type rootOptions struct {
	cfgFile  string
	logLevel string
}

// dependencies are the seams the subcommands reach external systems through.
type dependencies struct {
	sessions sessionProvider
	stores   storeProvider
	checker  preflighter
}

func defaultDependencies() dependencies {
	return dependencies{
		sessions: newBrowserSessionProvider(),
		stores:   NewStoreProvider(),
		checker:  newHTTPPreflighter(),
	}
}

// NewRootCmd builds the command tree with production dependencies.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDependencies())
}

func newRootCmd(deps dependencies) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "trackerprobe",
		Short:         "trackerprobe drives a browser through the assignment tracker's login and upload flows.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, opts); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "trackerprobe"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "trackerprobe"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting trackerprobe", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./trackerprobe.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newRunCmd(deps))
	cmd.AddCommand(newSuitesCmd())
	cmd.AddCommand(newFixturesCmd())
	cmd.AddCommand(newHistoryCmd(deps.stores))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	observability.Sync()
	return err
}

// initializeConfig points viper at the config file and the environment, and
// binds the persistent flags.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("trackerprobe")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("logger.level", f); err != nil {
			return err
		}
	}
	return nil
}

// getConfigFromContext returns the config stored by the root PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
