// Package cli assembles the hookline command tree. The root command loads the
// environment, initializes logging and resolves the configuration; every
// subcommand reads both from the command context.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
	"github.com/hookline/hookline/pkg/version"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hookline",
		Short: "Automation engine connecting service triggers to reactions",
		Long: "hookline runs stored areas: each area binds a trigger to an action and a " +
			"reaction, and every trigger firing pushes a job that the worker pool executes.",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupContext(cmd)
		},
	}
	root.PersistentFlags().String("env-file", "", "Load environment variables from this file before reading the configuration")
	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error or disabled")
	root.PersistentFlags().Bool("log-json", false, "Emit JSON logs (default when stderr is not a terminal)")
	root.PersistentFlags().Bool("log-source", false, "Annotate log lines with source positions")

	root.AddCommand(
		StartCmd(),
		MigrateCmd(),
		SeedCmd(),
		QueueCmd(),
		AreasCmd(),
	)
	return root
}

// setupContext loads the env file, initializes the process logger and
// resolves the configuration tree, attaching logger and config to the
// command context.
func setupContext(cmd *cobra.Command) error {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// A missing default .env is fine.
		_ = godotenv.Load()
	}

	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-json") {
		logJSON = !stderrIsTerminal()
	}
	logger.SetupLogger(logLevel, logJSON, logSource)

	cfg, err := config.NewLoader().Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := logger.ContextWithLogger(cmd.Context(), logger.GetDefault())
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
