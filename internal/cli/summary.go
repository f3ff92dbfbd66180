package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uitable"

	"github.com/akrishnanDG/unit-orchestrator/internal/migrator"
	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

var (
	colorGreen  = lipgloss.Color("#50fa7b")
	colorRed    = lipgloss.Color("#ff5555")
	colorYellow = lipgloss.Color("#f1fa8c")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.DoubleBorder(), true, false).
			Width(63).
			Align(lipgloss.Center)

	headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func banner(text string, color lipgloss.Color) string {
	return bannerStyle.BorderForeground(color).Foreground(color).Render(text)
}

func printMigrationSummary(out io.Writer, result *migrator.Result, duration time.Duration, dryRun bool) {
	batch := result.Batch
	if batch == nil {
		batch = &models.BatchResult{}
	}

	fmt.Fprintln(out)
	switch {
	case dryRun:
		fmt.Fprintln(out, banner("DRY RUN COMPLETE", colorYellow))
	case batch.Aborted:
		fmt.Fprintln(out, banner("MIGRATION ABORTED", colorRed))
	case batch.Failed > 0:
		fmt.Fprintln(out, banner("MIGRATION COMPLETED WITH ERRORS", colorRed))
	default:
		fmt.Fprintln(out, banner("MIGRATION COMPLETED SUCCESSFULLY", colorGreen))
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("  Session:", result.SessionID)
	table.AddRow("  Duration:", duration.Round(time.Millisecond))
	table.AddRow("  Units:", batch.Total)
	table.AddRow("  Batches:", batch.Batches)
	table.AddRow("  Successful:", batch.Successful)
	if batch.Failed > 0 {
		table.AddRow("  Failed:", fmt.Sprintf("%d [ERROR]", batch.Failed))
	} else {
		table.AddRow("  Failed:", batch.Failed)
	}
	table.AddRow("  Skipped:", batch.Skipped)
	table.AddRow("  Success rate:", fmt.Sprintf("%.1f%%", result.Summary.SuccessRate))
	if result.Summary.AverageDuration > 0 {
		table.AddRow("  Avg unit time:", result.Summary.AverageDuration.Round(time.Millisecond))
	}
	fmt.Fprintln(out, table)

	printProblemUnits(out, batch.Outcomes)

	if len(result.Reports) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, headingStyle.Render("Reports"))
		reports := uitable.New()
		for _, r := range result.Reports {
			if r.OK() {
				reports.AddRow("  "+string(r.Format), r.Path)
			} else {
				reports.AddRow("  "+string(r.Format), "FAILED: "+r.Err.Error())
			}
		}
		fmt.Fprintln(out, reports)
	}
	fmt.Fprintln(out)
}

func printProblemUnits(out io.Writer, outcomes []models.UnitOutcome) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	table.AddRow("  UNIT", "STATUS", "BATCH", "ERROR")

	var rows int
	for _, o := range outcomes {
		if o.Status != models.StatusFailed && o.Status != models.StatusSkipped {
			continue
		}
		table.AddRow("  "+o.UnitID, o.Status, o.Batch, o.Error)
		rows++
	}
	if rows == 0 {
		return
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Units needing attention"))
	fmt.Fprintln(out, table)
}

func printCycles(out io.Writer, cycles [][]string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, banner("CIRCULAR DEPENDENCIES", colorRed))
	for i, cycle := range cycles {
		fmt.Fprintf(out, "  %d. %s\n", i+1, strings.Join(cycle, " -> "))
	}
	fmt.Fprintln(out)
}
