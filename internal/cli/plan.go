package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/akrishnanDG/unit-orchestrator/internal/graph"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

// NewPlanCmd creates the plan command
func NewPlanCmd(opts *globalOptions) *cobra.Command {
	var (
		configFile string
		source     string
		manifest   string
		limit      int
		tiers      []string
		levels     []string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the processing order and batches without migrating",
		Long: `Resolve unit dependencies and print the batches a migration would run.
Nothing is processed and no session is created.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Source.Directory = source
			}
			if flags.Changed("manifest") {
				cfg.Source.Manifest = manifest
			}
			if flags.Changed("parallelism") {
				cfg.Concurrency.Limit = limit
			}
			if flags.Changed("tier") {
				cfg.Source.Tiers = tiers
			}
			if flags.Changed("complexity") {
				cfg.Source.Complexities = levels
			}
			if err := opts.setupLogging(cmd, cfg); err != nil {
				return err
			}

			units, err := loadUnits(cfg)
			if err != nil {
				return err
			}

			resolution := graph.Resolve(units)
			out := cmd.OutOrStdout()
			if !resolution.Success {
				cycleErr := resolution.Err()
				printCycles(out, resolution.Cycles)
				return cycleErr
			}

			printPlan(out, resolution, cfg.RunConfig().ConcurrencyLimit)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file path")
	flags.StringVar(&source, "source", ".", "Directory containing the units manifest")
	flags.StringVar(&manifest, "manifest", "", "Manifest file")
	flags.IntVar(&limit, "parallelism", 4, "Batch size used for the plan")
	flags.StringSliceVar(&tiers, "tier", nil, "Only plan units in this tier")
	flags.StringSliceVar(&levels, "complexity", nil, "Only plan units of this complexity")

	return cmd
}

// printPlan lists every unit with the fixed batch it would run in and its
// dependency level.
func printPlan(out io.Writer, resolution *graph.Resolution, limit int) {
	depth := make(map[string]int)
	for level, ids := range resolution.Levels() {
		for _, id := range ids {
			depth[id] = level
		}
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.AddRow("BATCH", "UNIT", "NAME", "COMPLEXITY", "LEVEL", "DEPENDS ON")

	for i, unit := range resolution.Ordered {
		var deps []string
		if node, ok := resolution.Nodes[unit.ID]; ok {
			deps = node.Dependencies
		}
		table.AddRow(i/limit+1, unit.ID, unit.DisplayName(), complexityLabel(unit.Complexity), depth[unit.ID], joinOrDash(deps))
	}

	batches := (len(resolution.Ordered) + limit - 1) / limit
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "\n%d units in %d batches (parallelism %d, %d dependency levels)\n",
		len(resolution.Ordered), batches, limit, len(resolution.Levels()))
}

func complexityLabel(c models.Complexity) string {
	if c == "" {
		return "-"
	}
	return string(c)
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
