package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/manifest"
	"github.com/akrishnanDG/unit-orchestrator/internal/validator"
)

// NewValidateCmd creates the validate command
func NewValidateCmd(opts *globalOptions) *cobra.Command {
	var (
		configFile   string
		manifestFile string
		source       string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and units without running a migration",
		Long: `Validate the configuration file, the unit manifest and the dependency
graph without actually performing the migration.

This is useful for checking your setup before running a migration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("source") {
				cfg.Source.Directory = source
			}
			if cmd.Flags().Changed("manifest") {
				cfg.Source.Manifest = manifestFile
			}
			if err := opts.setupLogging(cmd, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validation failed:\n%w", err)
			}
			fmt.Fprintln(out, "✓ Configuration is valid")

			path := cfg.ManifestPath()
			units, err := manifest.Load(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			result := validator.New().ValidateAll(units)
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "  ! %s\n", w)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  ✗ %s\n", e)
			}
			if err := result.Err(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(out, "✓ Manifest %s is valid (%d units, %d warnings)\n", path, len(units), len(result.Warnings))

			resolution := graph.Resolve(units)
			if !resolution.Success {
				printCycles(out, resolution.Cycles)
				return fmt.Errorf("validation failed: %w", resolution.Err())
			}
			fmt.Fprintf(out, "✓ Dependency graph is acyclic (%d levels)\n", len(resolution.Levels()))

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file path")
	flags.StringVar(&source, "source", ".", "Directory containing the units manifest")
	flags.StringVar(&manifestFile, "manifest", "", "Manifest file")

	return cmd
}
