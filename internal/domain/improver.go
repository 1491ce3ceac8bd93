package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"testforge.dev/pkg/testforge/internal/adapter"
	m "testforge.dev/pkg/testforge/internal/model"
	"testforge.dev/pkg/testforge/pkg"
)

// ConvergencePredicate decides whether an iteration produced negligible
// improvement over the previous one. It is pluggable; the default looks at
// coverage and mutation-score deltas only.
type ConvergencePredicate func(prev, cur m.QualityMetrics) bool

// DefaultConvergence treats a run as converged when neither coverage nor
// mutation score moved by more than epsilon. An absent mutation score on
// both sides contributes a zero delta; absent on one side counts as
// movement.
func DefaultConvergence(epsilon float64) ConvergencePredicate {
	return func(prev, cur m.QualityMetrics) bool {
		if cur.Coverage-prev.Coverage > epsilon {
			return false
		}

		prevScore, prevOK := mutationScore(prev)
		curScore, curOK := mutationScore(cur)

		if prevOK != curOK {
			return false
		}

		if prevOK && curScore-prevScore > epsilon {
			return false
		}

		return true
	}
}

func mutationScore(metrics m.QualityMetrics) (float64, bool) {
	if metrics.Mutation == nil || metrics.Mutation.Unavailable {
		return 0, false
	}

	return metrics.Mutation.Score, true
}

// ImproveArgs configures the improvement loop.
type ImproveArgs struct {
	MaxIterations int
	Threshold     float64
	TargetCap     int
	Concurrency   int
	TestDir       m.Path
	Converged     ConvergencePredicate

	// Journal receives one CandidateRecord per generated candidate. May be
	// nil when no audit trail is wanted.
	Journal pkg.Journal[m.CandidateRecord]
}

// ImproveResult is the outcome of the loop: the final suite, the accepted
// additions, and the append-only iteration trail.
type ImproveResult struct {
	Tests       []m.TestCase
	Accepted    []m.TestCase
	Iterations  []m.IterationState
	Diagnostics []m.Diagnostic
}

// Improver drives the bounded generate, judge, integrate, reassess loop.
// It owns the test-suite collection for the duration of the loop; nothing
// else may mutate it until Improve returns.
type Improver interface {
	Improve(ctx context.Context, graph *Graph, tests []m.TestCase, args ImproveArgs) (ImproveResult, error)
}

type improver struct {
	fs        adapter.SourceFSAdapter
	generator adapter.Generator
	judge     adapter.Judge
	disc      Discoverer
	assessor  Assessor
}

// NewImprover wires the loop's collaborators.
func NewImprover(
	fs adapter.SourceFSAdapter,
	generator adapter.Generator,
	judge adapter.Judge,
	disc Discoverer,
	assessor Assessor,
) Improver {
	return &improver{
		fs:        fs,
		generator: generator,
		judge:     judge,
		disc:      disc,
		assessor:  assessor,
	}
}

// candidateOutcome travels from a generate/judge worker to the integrating
// collector.
type candidateOutcome struct {
	unit     *m.CodeUnit
	test     *m.TestCase
	judgment adapter.Judgment
	diag     *m.Diagnostic
}

func (im *improver) Improve(ctx context.Context, graph *Graph, tests []m.TestCase, args ImproveArgs) (ImproveResult, error) {
	if args.MaxIterations < 1 {
		return ImproveResult{}, &m.ConfigError{Field: "max_iterations", Reason: "must be at least 1"}
	}

	if args.Converged == nil {
		args.Converged = DefaultConvergence(0)
	}

	if args.Concurrency < 1 {
		args.Concurrency = 1
	}

	if args.TargetCap < 1 {
		args.TargetCap = 5
	}

	result := ImproveResult{Tests: tests}

	var prev *m.QualityMetrics

	for iteration := 0; iteration < args.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		targets := selectTargets(graph, result.Tests, args.Threshold, args.TargetCap)
		if len(targets) == 0 {
			slog.Info("no targets left, stopping improvement", "iteration", iteration)
			break
		}

		state := m.IterationState{Index: iteration}
		for _, unit := range targets {
			state.Targets = append(state.Targets, unit.ID)
		}

		accepted, rejected, diags, err := im.runIteration(ctx, graph, iteration, targets, args)
		if err != nil {
			return result, err
		}

		result.Diagnostics = append(result.Diagnostics, diags...)

		for _, test := range accepted {
			result.Tests = append(result.Tests, test)
			result.Accepted = append(result.Accepted, test)
			state.Accepted = append(state.Accepted, test.ID)
		}

		state.Rejected = rejected

		// Reassess: recompute coverage from the grown suite, then snapshot.
		im.disc.MarkCoverage(graph, result.Tests)
		metrics, assessDiags := im.assessor.Assess(ctx, graph, result.Tests)
		result.Diagnostics = append(result.Diagnostics, assessDiags...)

		state.Metrics = metrics
		result.Iterations = append(result.Iterations, state)

		slog.Info("iteration complete",
			"iteration", iteration,
			"targets", len(targets),
			"accepted", len(accepted),
			"coverage", metrics.Coverage,
		)

		if prev != nil && args.Converged(*prev, metrics) {
			slog.Info("converged, stopping improvement", "iteration", iteration)
			break
		}

		prev = &metrics
	}

	return result, nil
}

// runIteration generates and judges one candidate per target. Workers run
// concurrently up to the configured limit; integration happens in this
// goroutine only, so suite growth and test-file writes are serialized.
func (im *improver) runIteration(ctx context.Context, graph *Graph, iteration int, targets []*m.CodeUnit, args ImproveArgs) ([]m.TestCase, []string, []m.Diagnostic, error) {
	outcomes := make(chan candidateOutcome, len(targets))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(args.Concurrency)

	for _, unit := range targets {
		group.Go(func() error {
			outcomes <- im.produceCandidate(groupCtx, graph, unit, args.Threshold)
			return nil
		})
	}

	go func() {
		_ = group.Wait()
		close(outcomes)
	}()

	var (
		accepted []m.TestCase
		rejected []string
		diags    []m.Diagnostic
	)

	for outcome := range outcomes {
		if outcome.diag != nil {
			diags = append(diags, *outcome.diag)
			journalRecord(args.Journal, m.CandidateRecord{
				Iteration: iteration,
				Unit:      outcome.unit.ID,
				Verdict:   m.VerdictFailed,
				Feedback:  outcome.diag.Detail,
			})

			continue
		}

		record := m.CandidateRecord{
			Iteration: iteration,
			Unit:      outcome.unit.ID,
			TestID:    outcome.test.ID,
			Score:     outcome.judgment.Score,
			Feedback:  outcome.judgment.Feedback,
		}

		// Acceptance is score >= threshold. The judge's Accepted flag is
		// advisory; the score decides.
		if outcome.judgment.Score < args.Threshold {
			slog.Debug("candidate rejected",
				"unit", outcome.unit.ID,
				"score", outcome.judgment.Score,
				"feedback", outcome.judgment.Feedback,
			)

			record.Verdict = m.VerdictRejected
			rejected = append(rejected, outcome.test.ID)
			journalRecord(args.Journal, record)

			continue
		}

		if err := im.integrate(outcome.test, args.TestDir); err != nil {
			return nil, nil, nil, err
		}

		record.Verdict = m.VerdictAccepted
		accepted = append(accepted, *outcome.test)
		journalRecord(args.Journal, record)
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Name < accepted[j].Name })

	return accepted, rejected, diags, nil
}

// produceCandidate runs the generate and judge capabilities for one unit.
// Failures become diagnostics: a generation failure skips the unit for this
// iteration, a judge failure counts as rejection.
func (im *improver) produceCandidate(ctx context.Context, graph *Graph, unit *m.CodeUnit, threshold float64) candidateOutcome {
	source, err := im.generator.Generate(ctx, *unit, dependencyContext(graph, unit))
	if err != nil {
		return candidateOutcome{unit: unit, diag: &m.Diagnostic{
			Kind:    m.DiagGenerationFailure,
			Subject: unit.ID.String(),
			Detail:  err.Error(),
		}}
	}

	test := buildCandidateTest(unit, source)

	judgment, err := im.judge.Judge(ctx, source, *unit, threshold)
	if err != nil {
		return candidateOutcome{unit: unit, test: &test, diag: &m.Diagnostic{
			Kind:    m.DiagJudgeFailure,
			Subject: unit.ID.String(),
			Detail:  err.Error(),
		}}
	}

	test.Clarity = &judgment.Score

	return candidateOutcome{unit: unit, test: &test, judgment: judgment}
}

// integrate writes an accepted test to its own file under the test
// directory. Called only from the collector goroutine.
func (im *improver) integrate(test *m.TestCase, testDir m.Path) error {
	path := im.fs.JoinPath(string(testDir), string(test.File))

	content := test.Source
	if !strings.HasPrefix(strings.TrimSpace(content), "package ") {
		content = "package generated_test\n\n" + content
	}

	if err := im.fs.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("integrate test %s: %w", test.Name, err)
	}

	return nil
}

func journalRecord(journal pkg.Journal[m.CandidateRecord], record m.CandidateRecord) {
	if journal == nil {
		return
	}

	if err := journal.Append(record); err != nil {
		slog.Warn("journal append failed", "unit", record.Unit, "error", err)
	}
}

// buildCandidateTest derives a TestCase from generated source. Assertion and
// mock counts are textual; generated code is not guaranteed to parse until
// the judge has vetted it.
func buildCandidateTest(unit *m.CodeUnit, source string) m.TestCase {
	name := "Test" + exportedName(bareName(unit.ID.Name))
	if parsed := firstTestName(source); parsed != "" {
		name = parsed
	}

	return m.TestCase{
		ID:         uuid.NewString(),
		Name:       name,
		File:       m.Path(fileNameFor(unit.ID)),
		Kind:       m.TestUnit,
		Target:     unit.ID,
		Assertions: countTextualAssertions(source),
		Mocks:      countTextualMocks(source),
		Source:     source,
		Generated:  true,
	}
}

func firstTestName(source string) string {
	const marker = "func Test"

	i := strings.Index(source, marker)
	if i < 0 {
		return ""
	}

	rest := source[i+len("func "):]
	if j := strings.IndexAny(rest, "([ \t\n"); j > 0 {
		return rest[:j]
	}

	return ""
}

func countTextualAssertions(source string) int {
	count := 0
	for _, marker := range []string{"assert.", "require.", "t.Error", "t.Fatal"} {
		count += strings.Count(source, marker)
	}

	return count
}

func countTextualMocks(source string) int {
	count := 0
	for _, marker := range []string{"NewMock", ".On(", ".EXPECT()"} {
		count += strings.Count(source, marker)
	}

	return count
}

// fileNameFor includes the unit kind so units sharing a qualified name, a
// function and a class both called calc.Parse, get distinct files.
func fileNameFor(id m.UnitID) string {
	name := strings.ToLower(strings.ReplaceAll(id.Name, ".", "_"))
	return name + "_" + string(id.Kind) + "_generated_test.go"
}

func exportedName(name string) string {
	if name == "" {
		return name
	}

	return strings.ToUpper(name[:1]) + name[1:]
}

// selectTargets ranks improvement candidates: uncovered units first, by
// descending complexity, then covered units whose tests score below the
// clarity threshold or carry no assertions. The limit bounds one iteration's
// workload; capped-out units stay eligible next time.
func selectTargets(graph *Graph, tests []m.TestCase, threshold float64, limit int) []*m.CodeUnit {
	var uncovered []*m.CodeUnit

	for _, unit := range graph.Units() {
		if !unit.Covered {
			uncovered = append(uncovered, unit)
		}
	}

	sort.SliceStable(uncovered, func(i, j int) bool {
		if uncovered[i].Complexity != uncovered[j].Complexity {
			return uncovered[i].Complexity > uncovered[j].Complexity
		}

		return uncovered[i].ID.Name < uncovered[j].ID.Name
	})

	selected := uncovered
	seen := make(map[m.UnitID]struct{}, len(selected))

	for _, unit := range selected {
		seen[unit.ID] = struct{}{}
	}

	for _, unit := range lowQualityUnits(graph, tests, threshold) {
		if _, ok := seen[unit.ID]; ok {
			continue
		}

		selected = append(selected, unit)
		seen[unit.ID] = struct{}{}
	}

	if len(selected) > limit {
		selected = selected[:limit]
	}

	return selected
}

// lowQualityUnits returns covered units whose existing tests are weak:
// judged clarity below threshold, or no assertions at all.
func lowQualityUnits(graph *Graph, tests []m.TestCase, threshold float64) []*m.CodeUnit {
	weak := make(map[m.UnitID]bool)

	for _, test := range tests {
		if !test.HasTarget() {
			continue
		}

		if (test.Clarity != nil && *test.Clarity < threshold) || test.Assertions == 0 {
			weak[test.Target] = true
		}
	}

	var out []*m.CodeUnit

	for _, unit := range graph.Units() {
		if weak[unit.ID] {
			out = append(out, unit)
		}
	}

	return out
}

// dependencyContext renders a unit's resolved dependencies for the
// generation prompt.
func dependencyContext(graph *Graph, unit *m.CodeUnit) string {
	deps := graph.DependenciesOf(unit.ID)
	if len(deps) == 0 {
		return ""
	}

	var b strings.Builder

	for _, dep := range deps {
		fmt.Fprintf(&b, "- %s (%s, %s:%d)\n", dep.ID.Name, dep.ID.Kind, dep.File, dep.StartLine)
	}

	return b.String()
}
