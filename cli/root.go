package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dallosh/analysis/pkg/config"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/dallosh/analysis/pkg/version"
)

const (
	defaultConfigFile = "dallosh.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dallosh",
		Short:        "Dallosh task lifecycle service",
		Version:      version.Get().String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML config file")
	flags.String("env-file", defaultEnvFile, "Path to the .env file")
	flags.String("log-level", "", "Log level (debug, info, warn, error); overrides runtime.log_level")
	flags.Bool("log-json", false, "Emit JSON logs")
	flags.Bool("log-source", false, "Include caller information in logs")

	root.AddCommand(
		ServeCmd(),
		MigrateCmd(),
	)
	return root
}

// SetupGlobalConfig loads the configuration, builds the logger and attaches
// both to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	configFile, err := stringFlag(cmd, "config")
	if err != nil {
		return err
	}
	envFile, err := stringFlag(cmd, "env-file")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, config.NewYAMLProvider(configFile), config.NewDotEnvProvider(envFile))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if level == "" {
		level = cfg.Runtime.LogLevel
	}
	if f := cmd.Flag("log-json"); f == nil || !f.Changed {
		logJSON = cfg.Runtime.LogJSON
	}
	log := logger.SetupLogger(logger.LogLevel(level), logJSON, logSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	log.Debug("Configuration loaded",
		"config_file", configFile,
		"env_file", envFile,
		"environment", cfg.Runtime.Environment)
	return nil
}

func stringFlag(cmd *cobra.Command, name string) (string, error) {
	f := cmd.Flag(name)
	if f == nil {
		return "", fmt.Errorf("failed to get %s flag: not defined", name)
	}
	return f.Value.String(), nil
}
