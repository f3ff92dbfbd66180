package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/manifest"
	"github.com/akrishnanDG/unit-orchestrator/internal/metrics"
	"github.com/akrishnanDG/unit-orchestrator/internal/migrator"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
	"github.com/akrishnanDG/unit-orchestrator/internal/processor"
	"github.com/akrishnanDG/unit-orchestrator/internal/publish"
	"github.com/akrishnanDG/unit-orchestrator/internal/report"
	"github.com/akrishnanDG/unit-orchestrator/internal/session"
	"github.com/akrishnanDG/unit-orchestrator/internal/validator"
	"github.com/akrishnanDG/unit-orchestrator/internal/worker"
	"github.com/akrishnanDG/unit-orchestrator/pkg/config"
)

// tokenEnvVar supplies the processor token when it is not configured
const tokenEnvVar = "UNIT_PROCESSOR_TOKEN"

// NewMigrateCmd creates the migrate command
func NewMigrateCmd(opts *globalOptions) *cobra.Command {
	cfg := config.NewDefaultConfig()
	var configFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate all units in dependency order",
		Long: `Resolve the units described by the manifest, process them in
dependency-ordered batches and write session reports.

Quick dry-run with CLI flags:
  unit-orchestrator migrate --source ./legacy --output ./out --dry-run

Full migration with config file:
  unit-orchestrator migrate --config config.yaml

Exits with status 1 when any unit fails or the run is aborted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file if specified
			if configFile != "" {
				loadedCfg, err := config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("failed to load config file: %w", err)
				}
				// CLI flags take precedence
				cfg = mergeConfigs(loadedCfg, cfg, cmd)
			}
			if err := opts.setupLogging(cmd, cfg); err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&configFile, "config", "c", "", "Config file path (recommended)")

	// Source
	flags.StringVar(&cfg.Source.Directory, "source", cfg.Source.Directory, "Directory containing the units manifest")
	flags.StringVar(&cfg.Source.Manifest, "manifest", "", "Manifest file (default: units.{yaml,yml,json} in --source)")
	flags.StringVar(&cfg.Source.BaselineDirectory, "baseline", "", "Baseline directory passed to the processor")
	flags.StringSliceVar(&cfg.Source.Tiers, "tier", nil, "Only migrate units in this tier (can be repeated)")
	flags.StringSliceVar(&cfg.Source.Complexities, "complexity", nil, "Only migrate units of this complexity (can be repeated)")

	// Processor
	flags.StringVar(&cfg.Processor.URL, "processor-url", "", "Unit processor endpoint")

	// Run policy
	flags.IntVar(&cfg.Concurrency.Limit, "parallelism", cfg.Concurrency.Limit, "Maximum units processed at once")
	flags.BoolVar(&cfg.Run.ContinueOnError, "continue-on-error", false, "Keep going after a unit fails")
	flags.BoolVar(&cfg.Run.DryRun, "dry-run", false, "Resolve and track units without processing them")
	flags.StringVar(&cfg.Run.Scheduling, "scheduling", cfg.Run.Scheduling, "Batch scheduling: fixed, wavefront")

	// Output
	flags.StringVar(&cfg.Output.Directory, "output", cfg.Output.Directory, "Output directory")
	flags.StringSliceVar(&cfg.Output.ReportFormats, "report-format", cfg.Output.ReportFormats, "Report formats: json, markdown, csv, html")
	flags.BoolVar(&cfg.Output.Progress, "progress", cfg.Output.Progress, "Show a progress bar")
	flags.StringVar(&cfg.Output.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	return cmd
}

// mergeConfigs merges loaded config with CLI flags, giving precedence to CLI flags
func mergeConfigs(fileConfig, cliConfig *config.Config, cmd *cobra.Command) *config.Config {
	merged := fileConfig

	// Override with CLI flags if they were explicitly set
	flags := cmd.Flags()

	// Source
	if flags.Changed("source") {
		merged.Source.Directory = cliConfig.Source.Directory
	}
	if flags.Changed("manifest") {
		merged.Source.Manifest = cliConfig.Source.Manifest
	}
	if flags.Changed("baseline") {
		merged.Source.BaselineDirectory = cliConfig.Source.BaselineDirectory
	}
	if flags.Changed("tier") {
		merged.Source.Tiers = cliConfig.Source.Tiers
	}
	if flags.Changed("complexity") {
		merged.Source.Complexities = cliConfig.Source.Complexities
	}

	if flags.Changed("processor-url") {
		merged.Processor.URL = cliConfig.Processor.URL
	}

	// Run policy
	if flags.Changed("parallelism") {
		merged.Concurrency.Limit = cliConfig.Concurrency.Limit
	}
	if flags.Changed("continue-on-error") {
		merged.Run.ContinueOnError = cliConfig.Run.ContinueOnError
	}
	if flags.Changed("dry-run") {
		merged.Run.DryRun = cliConfig.Run.DryRun
	}
	if flags.Changed("scheduling") {
		merged.Run.Scheduling = cliConfig.Run.Scheduling
	}

	// Output
	if flags.Changed("output") {
		merged.Output.Directory = cliConfig.Output.Directory
	}
	if flags.Changed("report-format") {
		merged.Output.ReportFormats = cliConfig.Output.ReportFormats
	}
	if flags.Changed("progress") {
		merged.Output.Progress = cliConfig.Output.Progress
	}
	if flags.Changed("metrics-file") {
		merged.Output.MetricsFile = cliConfig.Output.MetricsFile
	}

	return merged
}

func runMigrate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	// Load the processor token from the environment if not provided
	if cfg.Processor.Token == "" && cfg.Processor.Username == "" {
		cfg.Processor.Token = os.Getenv(tokenEnvVar)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	units, err := loadUnits(cfg)
	if err != nil {
		return err
	}

	proc, err := newProcessor(cfg)
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	collector := metrics.NewCollector()
	engineOpts := []migrator.EngineOption{
		migrator.WithObserver(collector),
		migrator.WithLimiter(worker.NewLimiter(cfg.Concurrency.RateLimit)),
		migrator.WithRetry(cfg.Concurrency.RetryAttempts, cfg.Concurrency.RetryDelay),
	}

	var bar *progressbar.ProgressBar
	if cfg.Output.Progress && len(units) > 0 {
		bar = newProgressBar(len(units), out)
		engineOpts = append(engineOpts, migrator.WithProgress(func(models.UnitOutcome) {
			bar.Add(1)
		}))
	}

	tracker := session.NewTracker(session.WithReporter(report.NewGenerator()))
	m := migrator.New(tracker, migrator.NewEngine(proc, engineOpts...))

	startTime := time.Now()
	result, runErr := m.Run(ctx, units, cfg.RunConfig())
	duration := time.Since(startTime)

	if bar != nil {
		bar.Finish()
		fmt.Fprintln(out)
	}

	if cfg.Output.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			slog.Error("Failed to write metrics", "error", err)
		}
	}

	var cycleErr *graph.CycleError
	if errors.As(runErr, &cycleErr) {
		printCycles(out, cycleErr.Cycles)
		return fmt.Errorf("dependency resolution failed: %w", runErr)
	}

	if result != nil && result.SessionID != "" {
		printMigrationSummary(out, result, duration, cfg.Run.DryRun)
		publishReports(ctx, cfg, result.Reports)
	}

	if runErr != nil {
		return fmt.Errorf("migration failed: %w", runErr)
	}
	if !result.Succeeded() {
		return fmt.Errorf("migration completed with %d failures", result.Batch.Failed)
	}

	return nil
}

// loadUnits reads the manifest, applies the source filters and validates
// the remaining units. Validation warnings are logged, errors are returned.
func loadUnits(cfg *config.Config) ([]models.MigrationUnit, error) {
	path := cfg.ManifestPath()
	units, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}

	units = manifest.Filter{
		Tiers:        cfg.Source.Tiers,
		Complexities: cfg.Source.Complexities,
	}.Apply(units)

	result := validator.New().ValidateAll(units)
	for _, w := range result.Warnings {
		slog.Warn("Unit validation warning", "unit", w.UnitID, "detail", w.Message)
	}
	for _, e := range result.Errors {
		slog.Error("Unit validation error", "unit", e.UnitID, "detail", e.Message)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("Loaded units", "manifest", path, "units", len(units))
	return units, nil
}

// newProcessor returns the HTTP processor. A dry run without a configured
// endpoint gets a processor that is never called.
func newProcessor(cfg *config.Config) (processor.UnitProcessor, error) {
	if cfg.Processor.URL == "" && cfg.Run.DryRun {
		return processor.Func(func(context.Context, models.MigrationUnit, models.RunConfig) (processor.Result, error) {
			return processor.Result{}, errors.New("no processor configured")
		}), nil
	}
	return processor.NewHTTP(cfg.Processor)
}

func newProgressBar(total int, out io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("      Migrating units"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func publishReports(ctx context.Context, cfg *config.Config, results []report.Result) {
	if !cfg.Publish.S3.Enabled() || len(results) == 0 {
		return
	}

	publisher, err := publish.NewS3(ctx, cfg.Publish.S3)
	if err != nil {
		slog.Error("Failed to create report publisher", "error", err)
		return
	}
	publisher.Publish(context.WithoutCancel(ctx), results)
}
