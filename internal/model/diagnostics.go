package model

import "fmt"

// DiagKind classifies a recovered failure.
type DiagKind string

const (
	// DiagParseFailure marks a source file that could not be parsed. The
	// file is excluded from the graph; mapping continues.
	DiagParseFailure DiagKind = "parse_failure"
	// DiagGenerationFailure marks a unit the generator errored on. The unit
	// is skipped for the current iteration only.
	DiagGenerationFailure DiagKind = "generation_failure"
	// DiagJudgeFailure marks a candidate whose judgment errored; it is
	// treated as a rejection.
	DiagJudgeFailure DiagKind = "judge_failure"
	// DiagToolUnavailable marks an external tool (mutation, coverage) that
	// could not run. The metric is reported absent, not zero.
	DiagToolUnavailable DiagKind = "tool_unavailable"
)

// Diagnostic is one recovered failure, accumulated alongside normal results.
// Only ConfigError aborts a run; everything else becomes a Diagnostic.
type Diagnostic struct {
	Kind    DiagKind
	Subject string // file path, unit ID, or tool name
	Detail  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Subject, d.Detail)
}

// ConfigError is a fatal configuration problem detected before mapping
// begins: an invalid project path, a nonsensical iteration budget, missing
// capability credentials.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}
