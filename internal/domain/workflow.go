package domain

import (
	"context"
	"fmt"
	"log/slog"

	"testforge.dev/pkg/testforge/internal/adapter"
	"testforge.dev/pkg/testforge/internal/controller"
	m "testforge.dev/pkg/testforge/internal/model"
	"testforge.dev/pkg/testforge/pkg"
)

// AuditArgs carries the resolved configuration for one audit run.
type AuditArgs struct {
	Project    string
	SourceRoot m.Path
	TestRoot   m.Path
	ReportsDir m.Path
	Exclude    []string

	MaxIterations  int
	Threshold      float64
	TargetCap      int
	Workers        int
	EnableMutation bool
	GenerateTests  bool
}

// MapArgs configures a structure-only pass.
type MapArgs struct {
	SourceRoot m.Path
	TestRoot   m.Path
	Exclude    []string
}

// Workflow is the top-level use case surface the commands call into.
type Workflow interface {
	// Audit runs the full pipeline: map, discover, assess, improve,
	// reassess, report. The returned report is complete even when
	// individual stages degraded into diagnostics.
	Audit(ctx context.Context, args AuditArgs) (m.AuditReport, error)

	// MapStructure maps the source tree and displays it without touching
	// any tests.
	MapStructure(ctx context.Context, args MapArgs) error
}

type auditWorkflow struct {
	adapter.SourceFSAdapter
	adapter.ReportStore
	controller.UI
	Mapper
	Discoverer
	Assessor
	Improver

	mutation adapter.MutationRunner
}

// NewWorkflow wires the audit pipeline from its ports.
func NewWorkflow(
	fsAdapter adapter.SourceFSAdapter,
	reportStore adapter.ReportStore,
	ui controller.UI,
	mapper Mapper,
	discoverer Discoverer,
	assessor Assessor,
	improver Improver,
	mutation adapter.MutationRunner,
) Workflow {
	return &auditWorkflow{
		SourceFSAdapter: fsAdapter,
		ReportStore:     reportStore,
		UI:              ui,
		Mapper:          mapper,
		Discoverer:      discoverer,
		Assessor:        assessor,
		Improver:        improver,
		mutation:        mutation,
	}
}

func (w *auditWorkflow) Audit(ctx context.Context, args AuditArgs) (m.AuditReport, error) {
	if err := validateAuditArgs(args); err != nil {
		return m.AuditReport{}, err
	}

	if err := w.Start(ctx, controller.WithTotalStages(totalStages(args))); err != nil {
		slog.Error("failed to start UI", "error", err)
		return m.AuditReport{}, err
	}
	defer w.Close(ctx)

	var diagnostics []m.Diagnostic

	graph, tests, diags, err := w.mapAndDiscover(ctx, args.SourceRoot, args.TestRoot, args.Exclude)
	if err != nil {
		return m.AuditReport{}, err
	}

	diagnostics = append(diagnostics, diags...)

	w.StageStarted(ctx, controller.StageAssessingInit)

	before, assessDiags := w.Assess(ctx, graph, tests)
	diagnostics = append(diagnostics, assessDiags...)

	var beforeMutation *m.MutationResult

	if args.EnableMutation {
		w.StageStarted(ctx, controller.StageMutatingInit)

		result, mutDiags := w.runMutation(ctx, args.SourceRoot, args.TestRoot)
		diagnostics = append(diagnostics, mutDiags...)
		before.Mutation = &result
		beforeMutation = &result

		w.DisplayMutation(ctx, "baseline", result)
	}

	if err := w.DisplayMetrics(ctx, "before", before); err != nil {
		slog.Error("failed to display metrics", "error", err)
		return m.AuditReport{}, err
	}

	journal, journalErr := pkg.NewJournal[m.CandidateRecord]()
	if journalErr != nil {
		slog.Warn("candidate journal unavailable, continuing without audit trail", "error", journalErr)

		journal = nil
	} else {
		defer journal.Close()
	}

	var (
		accepted   []m.TestCase
		iterations []m.IterationState
	)

	if args.GenerateTests {
		w.StageStarted(ctx, controller.StageImproving)

		result, improveErr := w.Improve(ctx, graph, tests, ImproveArgs{
			MaxIterations: args.MaxIterations,
			Threshold:     args.Threshold,
			TargetCap:     args.TargetCap,
			Concurrency:   args.Workers,
			TestDir:       args.TestRoot,
			Journal:       journal,
		})
		if improveErr != nil {
			slog.Error("improvement loop failed", "error", improveErr)
			return m.AuditReport{}, fmt.Errorf("improve: %w", improveErr)
		}

		tests = result.Tests
		accepted = result.Accepted
		iterations = result.Iterations
		diagnostics = append(diagnostics, result.Diagnostics...)

		for _, state := range iterations {
			w.DisplayIteration(ctx, state)
		}
	}

	w.StageStarted(ctx, controller.StageAssessingFinal)
	w.MarkCoverage(graph, tests)

	after, afterDiags := w.Assess(ctx, graph, tests)
	diagnostics = append(diagnostics, afterDiags...)

	var afterMutation *m.MutationResult

	if args.EnableMutation {
		w.StageStarted(ctx, controller.StageMutatingFinal)

		result, mutDiags := w.runMutation(ctx, args.SourceRoot, args.TestRoot)
		diagnostics = append(diagnostics, mutDiags...)
		after.Mutation = &result
		afterMutation = &result

		w.DisplayMutation(ctx, "final", result)
	}

	if err := w.DisplayMetrics(ctx, "after", after); err != nil {
		slog.Error("failed to display metrics", "error", err)
		return m.AuditReport{}, err
	}

	report := BuildReport(
		args.Project,
		before, after,
		beforeMutation, afterMutation,
		accepted, iterations, diagnostics,
	)

	w.StageStarted(ctx, controller.StageReporting)

	paths, saveErr := w.SaveReport(args.ReportsDir, report, journal)
	if saveErr != nil {
		slog.Error("failed to save report", "error", saveErr)
		return report, fmt.Errorf("save report: %w", saveErr)
	}

	w.DisplayReportPaths(ctx, paths)

	return report, nil
}

func (w *auditWorkflow) MapStructure(ctx context.Context, args MapArgs) error {
	if args.SourceRoot == "" {
		return &m.ConfigError{Field: "source_root", Reason: "must not be empty"}
	}

	if err := w.Start(ctx, controller.WithTotalStages(2)); err != nil {
		slog.Error("failed to start UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	_, _, _, err := w.mapAndDiscover(ctx, args.SourceRoot, args.TestRoot, args.Exclude)

	return err
}

// mapAndDiscover runs the two read-only stages shared by Audit and
// MapStructure, displaying the mapped structure along the way.
func (w *auditWorkflow) mapAndDiscover(
	ctx context.Context,
	sourceRoot, testRoot m.Path,
	exclude []string,
) (*Graph, []m.TestCase, []m.Diagnostic, error) {
	w.StageStarted(ctx, controller.StageMapping)

	graph, diagnostics, err := w.Map(ctx, sourceRoot, exclude)
	if err != nil {
		slog.Error("structure mapping failed", "root", sourceRoot, "error", err)
		return nil, nil, nil, fmt.Errorf("map structure: %w", err)
	}

	if err := w.DisplayStructure(ctx, graph.Units(), countParseFailures(diagnostics)); err != nil {
		slog.Error("failed to display structure", "error", err)
		return nil, nil, nil, err
	}

	w.StageStarted(ctx, controller.StageDiscovering)

	tests, discoverDiags, err := w.Discover(ctx, graph, testRoot)
	if err != nil {
		slog.Error("test discovery failed", "root", testRoot, "error", err)
		return nil, nil, nil, fmt.Errorf("discover tests: %w", err)
	}

	diagnostics = append(diagnostics, discoverDiags...)

	return graph, tests, diagnostics, nil
}

// runMutation degrades runner failures into an unavailable result plus a
// diagnostic; mutation problems never abort an audit.
func (w *auditWorkflow) runMutation(ctx context.Context, sourceRoot, testRoot m.Path) (m.MutationResult, []m.Diagnostic) {
	result, err := w.mutation.Run(ctx, sourceRoot, testRoot)
	if err != nil {
		slog.Warn("mutation run failed", "error", err)

		return m.UnavailableMutationResult(err.Error()), []m.Diagnostic{{
			Kind:    m.DiagToolUnavailable,
			Subject: "mutation",
			Detail:  err.Error(),
		}}
	}

	if result.Unavailable {
		return result, []m.Diagnostic{{
			Kind:    m.DiagToolUnavailable,
			Subject: "mutation",
			Detail:  result.Reason,
		}}
	}

	return result, nil
}

func validateAuditArgs(args AuditArgs) error {
	switch {
	case args.SourceRoot == "":
		return &m.ConfigError{Field: "source_root", Reason: "must not be empty"}
	case args.ReportsDir == "":
		return &m.ConfigError{Field: "output", Reason: "must not be empty"}
	case args.MaxIterations < 1:
		return &m.ConfigError{Field: "max_iterations", Reason: "must be at least 1"}
	case args.Threshold < 0 || args.Threshold > 10:
		return &m.ConfigError{Field: "threshold", Reason: "must be between 0 and 10"}
	}

	return nil
}

func totalStages(args AuditArgs) int {
	stages := 5 // map, discover, assess before, assess after, report

	if args.GenerateTests {
		stages++
	}

	if args.EnableMutation {
		stages += 2
	}

	return stages
}

func countParseFailures(diagnostics []m.Diagnostic) int {
	count := 0

	for _, diag := range diagnostics {
		if diag.Kind == m.DiagParseFailure {
			count++
		}
	}

	return count
}
