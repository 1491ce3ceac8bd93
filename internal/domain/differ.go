package domain

import (
	"time"

	m "testforge.dev/pkg/testforge/internal/model"
)

// Diff computes the after-minus-before deltas for every numeric metric in a
// snapshot pair. It is a pure function of its inputs. The mutation delta is
// rendered only when both sides carry a real score; an unavailable or
// disabled side must not masquerade as 0.
func Diff(before, after m.QualityMetrics) []m.MetricDelta {
	deltas := []m.MetricDelta{
		delta("coverage", before.Coverage, after.Coverage),
		delta("assertion_density", before.AssertionDensity, after.AssertionDensity),
		delta("avg_clarity", before.AvgClarity, after.AvgClarity),
		delta("avg_complexity", before.AvgComplexity, after.AvgComplexity),
		delta("mock_coverage", before.MockCoverage, after.MockCoverage),
		delta("total_tests", float64(before.TotalTests), float64(after.TotalTests)),
		delta("total_assertions", float64(before.TotalAssertions), float64(after.TotalAssertions)),
	}

	beforeScore, beforeOK := mutationScore(before)
	afterScore, afterOK := mutationScore(after)

	if beforeOK && afterOK {
		deltas = append(deltas, delta("mutation_score", beforeScore, afterScore))
	}

	return deltas
}

func delta(name string, before, after float64) m.MetricDelta {
	return m.MetricDelta{Name: name, Before: before, After: after, Delta: after - before}
}

// Recommendation thresholds, matching the audit rules the report promises.
const (
	minCoverage         = 80.0
	minMutationScore    = 70.0
	minAssertionDensity = 2.0
)

// Recommendations derives advice strings from the final snapshot using
// fixed rules.
func Recommendations(after m.QualityMetrics) []string {
	var out []string

	if after.Coverage < minCoverage {
		out = append(out, "Increase test coverage to at least 80%")
	}

	if score, ok := mutationScore(after); ok && score < minMutationScore {
		out = append(out, "Improve mutation score by adding more comprehensive assertions")
	}

	if after.Mutation != nil && after.Mutation.Unavailable {
		out = append(out, "Mutation testing was unavailable; re-run with a working mutation tool for fault-detection insight")
	}

	if after.TotalTests > 0 && after.AssertionDensity < minAssertionDensity {
		out = append(out, "Increase assertion density for better test effectiveness")
	}

	return out
}

// BuildReport assembles the immutable audit report from the run's outputs.
func BuildReport(
	project string,
	before, after m.QualityMetrics,
	beforeMutation, afterMutation *m.MutationResult,
	accepted []m.TestCase,
	iterations []m.IterationState,
	diagnostics []m.Diagnostic,
) m.AuditReport {
	assertionsAdded := 0
	for _, test := range accepted {
		assertionsAdded += test.Assertions
	}

	return m.AuditReport{
		Project:         project,
		Timestamp:       time.Now().UTC(),
		Before:          before,
		After:           after,
		BeforeMutation:  beforeMutation,
		AfterMutation:   afterMutation,
		Deltas:          Diff(before, after),
		TestsAdded:      len(accepted),
		AssertionsAdded: assertionsAdded,
		AcceptedTests:   accepted,
		Recommendations: Recommendations(after),
		Iterations:      iterations,
		Diagnostics:     diagnostics,
	}
}
