package controller

import (
	"bytes"
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "testforge.dev/pkg/testforge/internal/model"
)

// SimpleUI implements UI using the cobra Command's output stream. It is the
// non-interactive fallback and the implementation tests exercise.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a SimpleUI printing through cmd.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	_ = ctx.Err()
}

// StageStarted announces a pipeline stage.
func (s *SimpleUI) StageStarted(ctx context.Context, stage Stage) {
	if ctx.Err() != nil {
		return
	}

	s.printf("==> %s\n", stage)
}

// DisplayStructure renders the mapped units as a table.
func (s *SimpleUI) DisplayStructure(ctx context.Context, units []*m.CodeUnit, parseFailures int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Unit", "Kind", "File", "Complexity", "Covered"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	for _, unit := range units {
		covered := ""
		if unit.Covered {
			covered = "yes"
		}

		table.Append([]string{
			unit.ID.Name,
			string(unit.ID.Kind),
			fmt.Sprintf("%s:%d", unit.File, unit.StartLine),
			fmt.Sprintf("%d", unit.Complexity),
			covered,
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total %d", len(units)),
		"", "", "",
		fmt.Sprintf("failures %d", parseFailures),
	})

	table.Render()
	s.printf("\n%s", buf.String())

	return nil
}

// DisplayMetrics renders one quality snapshot as a table.
func (s *SimpleUI) DisplayMetrics(ctx context.Context, label string, metrics m.QualityMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Metric", label})
	table.SetBorder(false)
	table.SetCenterSeparator("")

	rows := [][]string{
		{"coverage", fmt.Sprintf("%.1f%%", metrics.Coverage)},
		{"mutation score", describeSnapshotMutation(metrics)},
		{"assertion density", fmt.Sprintf("%.2f", metrics.AssertionDensity)},
		{"avg clarity", describeClarity(metrics)},
		{"avg complexity", fmt.Sprintf("%.2f", metrics.AvgComplexity)},
		{"mock coverage", fmt.Sprintf("%.1f%%", metrics.MockCoverage)},
		{"tests", fmt.Sprintf("%d", metrics.TotalTests)},
		{"assertions", fmt.Sprintf("%d", metrics.TotalAssertions)},
		{"uncovered units", fmt.Sprintf("%d", len(metrics.UncoveredUnits))},
	}

	for _, row := range rows {
		table.Append(row)
	}

	table.Render()
	s.printf("\n%s", buf.String())

	return nil
}

func describeSnapshotMutation(metrics m.QualityMetrics) string {
	switch {
	case metrics.Mutation == nil:
		return "disabled"
	case metrics.Mutation.Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("%.1f%%", metrics.Mutation.Score)
	}
}

func describeClarity(metrics m.QualityMetrics) string {
	if metrics.ClarityUnavailable {
		return "unavailable"
	}

	return fmt.Sprintf("%.1f/10", metrics.AvgClarity)
}

// DisplayMutation prints one mutation-testing outcome.
func (s *SimpleUI) DisplayMutation(ctx context.Context, label string, result m.MutationResult) {
	if ctx.Err() != nil {
		return
	}

	if result.Unavailable {
		s.printf("%s mutation testing unavailable: %s\n", label, result.Reason)
		return
	}

	s.printf("%s mutation score: %.1f%% (%d/%d killed)\n", label, result.Score, result.Killed, result.Total)
}

// DisplayIteration prints one improvement-loop pass.
func (s *SimpleUI) DisplayIteration(ctx context.Context, state m.IterationState) {
	if ctx.Err() != nil {
		return
	}

	s.printf("iteration %d: %d targets, %d accepted, %d rejected, coverage %.1f%%\n",
		state.Index+1, len(state.Targets), len(state.Accepted), len(state.Rejected), state.Metrics.Coverage)
}

// DisplayReportPaths prints saved artifact locations.
func (s *SimpleUI) DisplayReportPaths(ctx context.Context, paths []m.Path) {
	if ctx.Err() != nil {
		return
	}

	for _, path := range paths {
		s.printf("report saved: %s\n", path)
	}
}

func (s *SimpleUI) printf(format string, args ...any) {
	s.cmd.Printf(format, args...)
}
