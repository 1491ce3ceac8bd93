package domain

import (
	"context"
	"fmt"
	"log/slog"

	"testforge.dev/pkg/testforge/internal/adapter"
	m "testforge.dev/pkg/testforge/internal/model"
)

// Assessor computes a quality snapshot from the current graph and test
// collection. Snapshots are value types; the assessor never mutates a prior
// one.
type Assessor interface {
	Assess(ctx context.Context, graph *Graph, tests []m.TestCase) (m.QualityMetrics, []m.Diagnostic)
}

type assessor struct {
	scorer adapter.ClarityScorer
}

// NewAssessor creates an Assessor. The scorer may be nil, in which case
// unscored tests stay unscored and the clarity average reflects only tests
// judged elsewhere.
func NewAssessor(scorer adapter.ClarityScorer) Assessor {
	return &assessor{scorer: scorer}
}

func (a *assessor) Assess(ctx context.Context, graph *Graph, tests []m.TestCase) (m.QualityMetrics, []m.Diagnostic) {
	var diags []m.Diagnostic

	metrics := m.QualityMetrics{
		TotalTests: len(tests),
	}

	units := graph.Units()

	covered := 0
	totalComplexity := 0

	for _, unit := range units {
		totalComplexity += unit.Complexity

		if unit.Covered {
			covered++
		} else {
			metrics.UncoveredUnits = append(metrics.UncoveredUnits, unit.ID)
		}
	}

	// Zero units means zero coverage, not a division error.
	if len(units) > 0 {
		metrics.Coverage = float64(covered) / float64(len(units)) * 100
		metrics.AvgComplexity = float64(totalComplexity) / float64(len(units))
	}

	mocked := 0

	for _, test := range tests {
		metrics.TotalAssertions += test.Assertions

		if test.Mocks > 0 {
			mocked++
		}
	}

	if len(tests) > 0 {
		metrics.AssertionDensity = float64(metrics.TotalAssertions) / float64(len(tests))
		metrics.MockCoverage = float64(mocked) / float64(len(tests)) * 100
	}

	metrics.AvgClarity, metrics.ClarityUnavailable, diags = a.clarityAverage(ctx, tests)

	return metrics, diags
}

// clarityAverage scores unscored tests through the external capability and
// averages over every successfully scored test. Per-test failures are
// tolerated; if nothing could be scored the average is 0 with the
// unavailable flag raised so callers do not read it as a judgment.
func (a *assessor) clarityAverage(ctx context.Context, tests []m.TestCase) (float64, bool, []m.Diagnostic) {
	if len(tests) == 0 {
		return 0, false, nil
	}

	var diags []m.Diagnostic

	total := 0.0
	scored := 0

	for i := range tests {
		test := &tests[i]

		if test.Clarity == nil && a.scorer != nil {
			score, err := a.scorer.Score(ctx, test.Source)
			if err != nil {
				slog.Debug("clarity scoring failed", "test", test.Name, "error", err)
				diags = append(diags, m.Diagnostic{
					Kind:    m.DiagJudgeFailure,
					Subject: test.Name,
					Detail:  fmt.Sprintf("clarity scoring: %v", err),
				})

				continue
			}

			test.Clarity = &score
		}

		if test.Clarity != nil {
			total += *test.Clarity
			scored++
		}
	}

	if scored == 0 {
		return 0, true, diags
	}

	return total / float64(scored), false, diags
}
