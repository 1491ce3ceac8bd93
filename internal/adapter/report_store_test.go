package adapter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	m "testforge.dev/pkg/testforge/internal/model"
	"testforge.dev/pkg/testforge/pkg"
)

func sampleReport() m.AuditReport {
	score := 62.5

	return m.AuditReport{
		Project:   "demo",
		Timestamp: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Before:    m.QualityMetrics{Coverage: 40, TotalTests: 10},
		After: m.QualityMetrics{
			Coverage:   80,
			TotalTests: 14,
			Mutation:   &m.MutationResult{Total: 16, Killed: 10, Survived: 6, Score: score},
		},
		AfterMutation: &m.MutationResult{Total: 16, Killed: 10, Survived: 6, Score: score},
		Deltas: []m.MetricDelta{
			{Name: "coverage", Before: 40, After: 80, Delta: 40},
		},
		TestsAdded:      4,
		AssertionsAdded: 9,
		AcceptedTests: []m.TestCase{
			{Name: "TestParse", Target: m.UnitID{Name: "p.Parse", Kind: m.UnitFunction}, Assertions: 3},
		},
		Recommendations: []string{"Increase test coverage to at least 80%"},
		Diagnostics: []m.Diagnostic{
			{Kind: m.DiagParseFailure, Subject: "bad.go", Detail: "syntax error"},
		},
	}
}

func TestSaveReportWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(NewLocalSourceFSAdapter())

	paths, err := store.SaveReport(m.Path(dir), sampleReport(), nil)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	assert.Equal(t, filepath.Join(dir, "audit_report_20260314_150926.md"), string(paths[0]))
	assert.Equal(t, filepath.Join(dir, "audit_data_20260314_150926.json"), string(paths[1]))
	assert.Equal(t, filepath.Join(dir, "audit_summary_20260314_150926.yaml"), string(paths[2]))

	for _, path := range paths {
		info, statErr := os.Stat(string(path))
		require.NoError(t, statErr)
		assert.Positive(t, info.Size())
	}
}

func TestSaveReportJSONContents(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(NewLocalSourceFSAdapter())

	paths, err := store.SaveReport(m.Path(dir), sampleReport(), nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(string(paths[1]))
	require.NoError(t, err)

	var decoded jsonReport
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "demo", decoded.Project)
	assert.Equal(t, 4, decoded.TestsAdded)
	assert.Equal(t, "disabled", decoded.Before.MutationNote)
	require.NotNil(t, decoded.After.MutationScore)
	assert.InDelta(t, 62.5, *decoded.After.MutationScore, 1e-9)
	require.Len(t, decoded.Diagnostics, 1)
}

func TestSaveReportMarkdownContents(t *testing.T) {
	markdown := RenderMarkdown(sampleReport())

	assert.Contains(t, markdown, "# Test Quality Audit: demo")
	assert.Contains(t, markdown, "| coverage | 40.00 | 80.00 | +40.00 |")
	assert.Contains(t, markdown, "Mutation score before: disabled")
	assert.Contains(t, markdown, "Mutation score after: 62.5%")
	assert.Contains(t, markdown, "TestParse")
	assert.Contains(t, markdown, "## Recommendations")
	assert.Contains(t, markdown, "## Diagnostics (1)")
}

func TestSaveReportUnavailableMutationNote(t *testing.T) {
	report := sampleReport()
	report.After.Mutation = &m.MutationResult{Unavailable: true, Reason: "tool missing"}

	metrics := toJSONMetrics(report.After)
	assert.Nil(t, metrics.MutationScore)
	assert.Equal(t, "unavailable: tool missing", metrics.MutationNote)
}

func TestSaveReportYAMLSummary(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(NewLocalSourceFSAdapter())

	paths, err := store.SaveReport(m.Path(dir), sampleReport(), nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(string(paths[2]))
	require.NoError(t, err)

	var summary yamlSummary
	require.NoError(t, yaml.Unmarshal(raw, &summary))

	assert.Equal(t, "demo", summary.Project)
	assert.InDelta(t, 80.0, summary.CoverageAfter, 1e-9)
	assert.Equal(t, "disabled", summary.MutationBefore)
	assert.Equal(t, "62.5%", summary.MutationAfter)
}

func TestSaveReportIncludesJournalCandidates(t *testing.T) {
	journal, err := pkg.NewJournal[m.CandidateRecord]()
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(m.CandidateRecord{
		Iteration: 0,
		Unit:      m.UnitID{Name: "p.Parse", Kind: m.UnitFunction},
		Verdict:   m.VerdictAccepted,
		Score:     8.5,
	}))
	require.NoError(t, journal.Append(m.CandidateRecord{
		Iteration: 1,
		Unit:      m.UnitID{Name: "p.Render", Kind: m.UnitFunction},
		Verdict:   m.VerdictRejected,
		Score:     4,
		Feedback:  "weak assertions",
	}))

	dir := t.TempDir()
	store := NewFileReportStore(NewLocalSourceFSAdapter())

	paths, err := store.SaveReport(m.Path(dir), sampleReport(), journal)
	require.NoError(t, err)

	raw, err := os.ReadFile(string(paths[1]))
	require.NoError(t, err)

	var decoded jsonReport
	require.NoError(t, json.Unmarshal(raw, &decoded))

	require.Len(t, decoded.Candidates, 2)
	assert.Equal(t, string(m.VerdictAccepted), decoded.Candidates[0].Verdict)
	assert.Equal(t, "weak assertions", decoded.Candidates[1].Feedback)
}

func TestSaveReportCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	store := NewFileReportStore(NewLocalSourceFSAdapter())

	_, err := store.SaveReport(m.Path(dir), sampleReport(), nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
