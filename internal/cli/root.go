package cli

import (
	"github.com/spf13/cobra"

	"github.com/akrishnanDG/unit-orchestrator/internal/logging"
	"github.com/akrishnanDG/unit-orchestrator/pkg/config"
)

// globalOptions holds flags shared by every subcommand
type globalOptions struct {
	logLevel string
	logFile  string
	closeLog func() error
}

// NewRootCmd creates the root command
func NewRootCmd(version, buildTime string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "unit-orchestrator",
		Short: "Migrate interdependent code units in dependency order",
		Long: `A concurrent CLI tool that migrates a set of interdependent code units
(components, modules, packages) from a source form to a target form.

Features:
  - Dependency resolution with cycle detection
  - Bounded-concurrency batches with optional wavefront scheduling
  - Per-session tracking of every unit's lifecycle
  - JSON, Markdown, CSV and HTML reports, optionally published to S3
  - Prometheus metrics textfile export`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pflags.StringVar(&opts.logFile, "log-file", "", "Also append logs to this file")

	// Add subcommands
	rootCmd.AddCommand(NewMigrateCmd(opts))
	rootCmd.AddCommand(NewPlanCmd(opts))
	rootCmd.AddCommand(NewValidateCmd(opts))
	rootCmd.AddCommand(NewVersionCmd(version, buildTime))

	return rootCmd
}

// setupLogging applies the logging flags over cfg and installs the logger.
// Flags given on the command line win over the config file.
func (o *globalOptions) setupLogging(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.Output.LogLevel == "" {
		cfg.Output.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Output.LogFile = o.logFile
	}

	closeLog, err := logging.Setup(cfg.Output.LogLevel, cfg.Output.LogFile)
	o.closeLog = closeLog
	return err
}

// loadConfig returns the defaults, or the file at path layered over them
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}
