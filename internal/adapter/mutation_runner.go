package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	m "testforge.dev/pkg/testforge/internal/model"
)

// MutationRunner invokes an external mutation-testing capability over a
// source and test root and returns normalized counts.
type MutationRunner interface {
	Run(ctx context.Context, sourceRoot, testRoot m.Path) (m.MutationResult, error)
}

// ExecMutationRunner shells out to a configured mutation-testing command and
// parses killed/survived counts from its output. A failed or timed-out run
// yields an unavailable result, never an error: mutation testing degrading
// must not break the audit.
type ExecMutationRunner struct {
	command string
	args    []string
	timeout time.Duration
}

// DefaultMutationTimeout bounds one external mutation run.
const DefaultMutationTimeout = 5 * time.Minute

// NewExecMutationRunner constructs a runner for the given command line. An
// empty command makes every run report unavailable; the caller decides the
// tool.
func NewExecMutationRunner(command string, args []string, timeout time.Duration) *ExecMutationRunner {
	if timeout <= 0 {
		timeout = DefaultMutationTimeout
	}

	return &ExecMutationRunner{command: command, args: args, timeout: timeout}
}

// Run executes the mutation tool with a deadline and normalizes its output.
func (r *ExecMutationRunner) Run(ctx context.Context, sourceRoot, testRoot m.Path) (m.MutationResult, error) {
	if r.command == "" {
		return m.UnavailableMutationResult("no mutation command configured"), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.args...), string(sourceRoot), string(testRoot))

	cmd := exec.CommandContext(runCtx, r.command, args...)
	cmd.Dir = string(sourceRoot)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()

	if runCtx.Err() != nil {
		slog.Warn("mutation run timed out", "command", r.command, "timeout", r.timeout)
		return m.UnavailableMutationResult(fmt.Sprintf("timed out after %s", r.timeout)), nil
	}

	total, killed, survived, parseErr := ParseMutationOutput(output)
	if parseErr != nil {
		// Exit status alone is not a signal: mutation tools commonly exit
		// non-zero when mutants survive. Only unparseable output counts as
		// a tool failure.
		if err != nil {
			slog.Warn("mutation run failed", "command", r.command, "error", err)
			return m.UnavailableMutationResult(err.Error()), nil
		}

		return m.UnavailableMutationResult(parseErr.Error()), nil
	}

	return m.NewMutationResult(total, killed, survived), nil
}

var (
	killedRe   = regexp.MustCompile(`(?i)killed[^0-9]*(\d+)|(\d+)\s+killed`)
	survivedRe = regexp.MustCompile(`(?i)surviv\w*[^0-9]*(\d+)|(\d+)\s+surviv\w*`)
)

// ParseMutationOutput extracts killed and survived counts from mutation tool
// output. Total is their sum; tools that report totals separately still
// satisfy killed+survived for the score denominator.
func ParseMutationOutput(output string) (total, killed, survived int, err error) {
	killed, okKilled := firstInt(killedRe.FindStringSubmatch(output))
	survived, okSurvived := firstInt(survivedRe.FindStringSubmatch(output))

	if !okKilled && !okSurvived {
		return 0, 0, 0, fmt.Errorf("no mutation counts in output")
	}

	return killed + survived, killed, survived, nil
}

func firstInt(groups []string) (int, bool) {
	for i := 1; i < len(groups); i++ {
		if groups[i] == "" {
			continue
		}

		n, err := strconv.Atoi(groups[i])
		if err == nil {
			return n, true
		}
	}

	return 0, false
}
