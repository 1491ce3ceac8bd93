package model

// QualityMetrics is an immutable snapshot of test-suite quality. A new
// assessment produces a new snapshot; prior snapshots are never mutated.
type QualityMetrics struct {
	// Coverage is the percentage of units reachable from at least one test.
	Coverage float64
	// Mutation holds the mutation-testing outcome for this snapshot. It is
	// nil when mutation testing was disabled for the run.
	Mutation *MutationResult
	// AssertionDensity is total assertions divided by test count.
	AssertionDensity float64
	// AvgClarity is the mean judged clarity over successfully scored tests.
	AvgClarity float64
	// ClarityUnavailable is set when no test could be scored, so AvgClarity
	// of 0 must not be read as "all tests are unreadable".
	ClarityUnavailable bool
	// AvgComplexity is the mean cyclomatic complexity over all units.
	AvgComplexity float64
	// MockCoverage is the percentage of tests using at least one mock.
	MockCoverage float64

	TotalTests      int
	TotalAssertions int

	UncoveredUnits []UnitID
}

// MutationResult is the normalized outcome of one mutation-testing run.
// Unavailable distinguishes "the tool could not run" from a genuine 0% score.
type MutationResult struct {
	Total    int
	Killed   int
	Survived int
	Score    float64

	Unavailable bool
	Reason      string
}

// NewMutationResult computes the score from raw counts. A run with zero
// mutations scores 0, not NaN.
func NewMutationResult(total, killed, survived int) MutationResult {
	r := MutationResult{Total: total, Killed: killed, Survived: survived}
	if total > 0 {
		r.Score = float64(killed) / float64(total) * 100
	}

	return r
}

// UnavailableMutationResult marks mutation testing as not run, with the
// reason preserved for the report.
func UnavailableMutationResult(reason string) MutationResult {
	return MutationResult{Unavailable: true, Reason: reason}
}
