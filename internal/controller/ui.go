// Package controller provides output adapters for displaying audit progress
// and results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "testforge.dev/pkg/testforge/internal/model"
)

// Stage names the audit pipeline phases as shown to the user.
type Stage string

// Pipeline stages in execution order.
const (
	StageMapping        Stage = "mapping structure"
	StageDiscovering    Stage = "discovering tests"
	StageAssessingInit  Stage = "assessing quality (before)"
	StageMutatingInit   Stage = "mutation testing (before)"
	StageImproving      Stage = "improving tests"
	StageAssessingFinal Stage = "assessing quality (after)"
	StageMutatingFinal  Stage = "mutation testing (after)"
	StageReporting      Stage = "writing report"
)

// StartOption configures UI startup.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	totalStages int
}

// WithTotalStages tells progress displays how many stages the run has.
func WithTotalStages(n int) StartOption {
	return func(c *StartConfig) {
		c.totalStages = n
	}
}

// UI is the port the workflow reports progress and results through.
// Implementations can be plain text or an interactive terminal view.
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	StageStarted(ctx context.Context, stage Stage)
	DisplayStructure(ctx context.Context, units []*m.CodeUnit, parseFailures int) error
	DisplayMetrics(ctx context.Context, label string, metrics m.QualityMetrics) error
	DisplayMutation(ctx context.Context, label string, result m.MutationResult)
	DisplayIteration(ctx context.Context, state m.IterationState)
	DisplayReportPaths(ctx context.Context, paths []m.Path)
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}

// NewUI picks the TUI for interactive terminals and the simple printer
// otherwise.
func NewUI(cmd *cobra.Command, interactive bool) UI {
	if interactive {
		return NewTUI(os.Stdout)
	}

	return NewSimpleUI(cmd)
}
