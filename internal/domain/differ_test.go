package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "testforge.dev/pkg/testforge/internal/model"
)

func deltaByName(t *testing.T, deltas []m.MetricDelta, name string) m.MetricDelta {
	t.Helper()

	for _, d := range deltas {
		if d.Name == name {
			return d
		}
	}

	t.Fatalf("delta %q not found", name)

	return m.MetricDelta{}
}

func TestDiffComputesDeltas(t *testing.T) {
	before := m.QualityMetrics{Coverage: 40, AssertionDensity: 1.5, TotalTests: 10}
	after := m.QualityMetrics{Coverage: 75, AssertionDensity: 2.5, TotalTests: 14}

	deltas := Diff(before, after)

	coverage := deltaByName(t, deltas, "coverage")
	assert.InDelta(t, 35.0, coverage.Delta, 1e-9)
	assert.InDelta(t, 40.0, coverage.Before, 1e-9)
	assert.InDelta(t, 75.0, coverage.After, 1e-9)

	assert.InDelta(t, 4.0, deltaByName(t, deltas, "total_tests").Delta, 1e-9)
}

func TestDiffOmitsMutationWhenUnavailable(t *testing.T) {
	real := m.QualityMetrics{Mutation: &m.MutationResult{Score: 60}}
	unavailable := m.QualityMetrics{Mutation: &m.MutationResult{Unavailable: true, Reason: "tool missing"}}
	absent := m.QualityMetrics{}

	for name, pair := range map[string][2]m.QualityMetrics{
		"before unavailable": {unavailable, real},
		"after unavailable":  {real, unavailable},
		"both absent":        {absent, absent},
	} {
		t.Run(name, func(t *testing.T) {
			for _, d := range Diff(pair[0], pair[1]) {
				assert.NotEqual(t, "mutation_score", d.Name)
			}
		})
	}
}

func TestDiffIncludesMutationWhenBothReal(t *testing.T) {
	before := m.QualityMetrics{Mutation: &m.MutationResult{Score: 55}}
	after := m.QualityMetrics{Mutation: &m.MutationResult{Score: 70}}

	d := deltaByName(t, Diff(before, after), "mutation_score")
	assert.InDelta(t, 15.0, d.Delta, 1e-9)
}

func TestRecommendationsLowMetrics(t *testing.T) {
	after := m.QualityMetrics{
		Coverage:         60,
		AssertionDensity: 1.0,
		TotalTests:       5,
		Mutation:         &m.MutationResult{Score: 50},
	}

	recs := Recommendations(after)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0], "coverage")
	assert.Contains(t, recs[1], "mutation score")
	assert.Contains(t, recs[2], "assertion density")
}

func TestRecommendationsHealthySuite(t *testing.T) {
	after := m.QualityMetrics{
		Coverage:         95,
		AssertionDensity: 3.0,
		TotalTests:       40,
		Mutation:         &m.MutationResult{Score: 85},
	}

	assert.Empty(t, Recommendations(after))
}

func TestRecommendationsUnavailableMutation(t *testing.T) {
	after := m.QualityMetrics{
		Coverage:         95,
		AssertionDensity: 3.0,
		TotalTests:       40,
		Mutation:         &m.MutationResult{Unavailable: true, Reason: "no tool"},
	}

	recs := Recommendations(after)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "unavailable")
}

func TestBuildReportAggregates(t *testing.T) {
	accepted := []m.TestCase{
		{Name: "TestA", Assertions: 3},
		{Name: "TestB", Assertions: 2},
	}

	report := BuildReport("demo", m.QualityMetrics{Coverage: 40}, m.QualityMetrics{Coverage: 80}, nil, nil, accepted, nil, nil)

	assert.Equal(t, "demo", report.Project)
	assert.Equal(t, 2, report.TestsAdded)
	assert.Equal(t, 5, report.AssertionsAdded)
	assert.False(t, report.Timestamp.IsZero())
	assert.NotEmpty(t, report.Deltas)
	assert.NotEmpty(t, report.Recommendations)
}
