package controller

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "testforge.dev/pkg/testforge/internal/model"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	numberStyle = lipgloss.NewStyle().Bold(true)
)

// TUI implements UI with an interactive Bubble Tea progress view. The
// workflow pushes events through program.Send; rendering happens on the
// program's own loop.
type TUI struct {
	output  io.Writer
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a TUI writing to output.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

type (
	stageMsg    Stage
	lineMsg     string
	finishedMsg struct{}
)

// Start launches the Bubble Tea program in the background.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stageStyle

	t.program = tea.NewProgram(
		auditModel{spinner: sp, totalStages: cfg.totalStages},
		tea.WithOutput(t.output),
		tea.WithoutSignalHandler(),
	)
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		_, _ = t.program.Run()
	}()

	return nil
}

// Close stops the program and waits for the final frame.
func (t *TUI) Close(ctx context.Context) {
	if t.program == nil {
		return
	}

	t.program.Send(finishedMsg{})

	select {
	case <-t.done:
	case <-ctx.Done():
		t.program.Kill()
	}
}

// StageStarted switches the progress line to the new stage.
func (t *TUI) StageStarted(ctx context.Context, stage Stage) {
	t.send(ctx, stageMsg(stage))
}

// DisplayStructure summarizes the mapped tree; the full table belongs to the
// simple UI and the report.
func (t *TUI) DisplayStructure(ctx context.Context, units []*m.CodeUnit, parseFailures int) error {
	line := fmt.Sprintf("%s code units mapped", numberStyle.Render(fmt.Sprintf("%d", len(units))))
	if parseFailures > 0 {
		line += warnStyle.Render(fmt.Sprintf(" (%d files failed to parse)", parseFailures))
	}

	t.send(ctx, lineMsg(line))

	return ctx.Err()
}

// DisplayMetrics appends a snapshot summary line.
func (t *TUI) DisplayMetrics(ctx context.Context, label string, metrics m.QualityMetrics) error {
	t.send(ctx, lineMsg(fmt.Sprintf("%s: coverage %s, %d tests, density %.2f, clarity %s",
		label,
		numberStyle.Render(fmt.Sprintf("%.1f%%", metrics.Coverage)),
		metrics.TotalTests,
		metrics.AssertionDensity,
		describeClarity(metrics),
	)))

	return ctx.Err()
}

// DisplayMutation appends a mutation outcome line.
func (t *TUI) DisplayMutation(ctx context.Context, label string, result m.MutationResult) {
	if result.Unavailable {
		t.send(ctx, lineMsg(warnStyle.Render(fmt.Sprintf("%s mutation testing unavailable: %s", label, result.Reason))))
		return
	}

	t.send(ctx, lineMsg(fmt.Sprintf("%s mutation score %s (%d/%d killed)",
		label, numberStyle.Render(fmt.Sprintf("%.1f%%", result.Score)), result.Killed, result.Total)))
}

// DisplayIteration appends one loop pass line.
func (t *TUI) DisplayIteration(ctx context.Context, state m.IterationState) {
	t.send(ctx, lineMsg(fmt.Sprintf("iteration %d: %d targets, %s accepted, coverage %.1f%%",
		state.Index+1,
		len(state.Targets),
		okStyle.Render(fmt.Sprintf("%d", len(state.Accepted))),
		state.Metrics.Coverage,
	)))
}

// DisplayReportPaths appends saved artifact locations.
func (t *TUI) DisplayReportPaths(ctx context.Context, paths []m.Path) {
	for _, path := range paths {
		t.send(ctx, lineMsg(mutedStyle.Render("report saved: "+string(path))))
	}
}

func (t *TUI) send(ctx context.Context, msg tea.Msg) {
	if t.program == nil || ctx.Err() != nil {
		return
	}

	t.program.Send(msg)
}

// auditModel is the Bubble Tea model: a title, a spinner on the current
// stage, and a scrollback of event lines.
type auditModel struct {
	spinner     spinner.Model
	stage       Stage
	stageCount  int
	totalStages int
	lines       []string
	finished    bool
}

func (am auditModel) Init() tea.Cmd {
	return am.spinner.Tick
}

func (am auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageMsg:
		am.stage = Stage(msg)
		am.stageCount++

		return am, nil

	case lineMsg:
		am.lines = append(am.lines, string(msg))
		return am, nil

	case finishedMsg:
		am.finished = true
		return am, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			am.finished = true
			return am, tea.Quit
		}

		return am, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		am.spinner, cmd = am.spinner.Update(msg)

		return am, cmd
	}

	return am, nil
}

func (am auditModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("testforge audit"))
	b.WriteString("\n\n")

	for _, line := range am.lines {
		b.WriteString("  " + line + "\n")
	}

	switch {
	case am.finished:
		b.WriteString("\n" + okStyle.Render("done") + "\n")
	case am.stage != "":
		progress := ""
		if am.totalStages > 0 {
			progress = mutedStyle.Render(fmt.Sprintf(" [%d/%d]", am.stageCount, am.totalStages))
		}

		b.WriteString(fmt.Sprintf("\n%s %s%s\n", am.spinner.View(), stageStyle.Render(string(am.stage)), progress))
	}

	return b.String()
}
