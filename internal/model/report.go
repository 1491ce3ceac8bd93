package model

import "time"

// IterationState records one pass of the improvement loop. The sequence of
// states forms the append-only audit trail of a run.
type IterationState struct {
	Index    int
	Targets  []UnitID
	Accepted []string
	Rejected []string
	Metrics  QualityMetrics
}

// MetricDelta is an after-minus-before difference for one metric.
type MetricDelta struct {
	Name   string
	Before float64
	After  float64
	Delta  float64
}

// AuditReport is the final before/after comparison for a run. It is created
// once, after the last assessment, and never mutated.
type AuditReport struct {
	Project   string
	Timestamp time.Time

	Before QualityMetrics
	After  QualityMetrics

	BeforeMutation *MutationResult
	AfterMutation  *MutationResult

	Deltas          []MetricDelta
	TestsAdded      int
	AssertionsAdded int

	AcceptedTests   []TestCase
	Recommendations []string

	Iterations  []IterationState
	Diagnostics []Diagnostic
}

// CandidateVerdict is the judged outcome for one generated candidate.
type CandidateVerdict string

const (
	// VerdictAccepted means the candidate met the quality threshold.
	VerdictAccepted CandidateVerdict = "accepted"
	// VerdictRejected means the judge scored the candidate below threshold.
	VerdictRejected CandidateVerdict = "rejected"
	// VerdictFailed means generation or judging errored for this unit.
	VerdictFailed CandidateVerdict = "failed"
)

// CandidateRecord is one journal entry for a generated candidate. Records
// are spilled to disk during the run and summarized by the report store.
type CandidateRecord struct {
	Iteration int
	Unit      UnitID
	TestID    string
	Verdict   CandidateVerdict
	Score     float64
	Feedback  string
}
