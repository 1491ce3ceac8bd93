package adapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	m "testforge.dev/pkg/testforge/internal/model"
	"testforge.dev/pkg/testforge/pkg"
)

// ReportStore persists the audit artifacts produced at the end of a run: a
// markdown report for humans, a JSON record for tooling, and a YAML summary.
type ReportStore interface {
	SaveReport(dir m.Path, report m.AuditReport, journal pkg.Journal[m.CandidateRecord]) ([]m.Path, error)
}

// FileReportStore writes reports under a directory, keyed by the report's
// generation timestamp.
type FileReportStore struct {
	fs SourceFSAdapter
}

// NewFileReportStore constructs a FileReportStore over the given filesystem
// adapter.
func NewFileReportStore(fs SourceFSAdapter) *FileReportStore {
	return &FileReportStore{fs: fs}
}

type jsonReport struct {
	Project         string             `json:"project"`
	Timestamp       time.Time          `json:"timestamp"`
	Before          jsonMetrics        `json:"before"`
	After           jsonMetrics        `json:"after"`
	Deltas          []m.MetricDelta    `json:"deltas"`
	TestsAdded      int                `json:"tests_added"`
	AssertionsAdded int                `json:"assertions_added"`
	Recommendations []string           `json:"recommendations"`
	Iterations      int                `json:"iterations"`
	Diagnostics     []string           `json:"diagnostics,omitempty"`
	Candidates      []candidateSummary `json:"candidates,omitempty"`
}

type jsonMetrics struct {
	Coverage         float64  `json:"coverage"`
	MutationScore    *float64 `json:"mutation_score,omitempty"`
	MutationNote     string   `json:"mutation_note,omitempty"`
	AssertionDensity float64  `json:"assertion_density"`
	AvgClarity       float64  `json:"avg_clarity"`
	AvgComplexity    float64  `json:"avg_complexity"`
	MockCoverage     float64  `json:"mock_coverage"`
	TotalTests       int      `json:"total_tests"`
	TotalAssertions  int      `json:"total_assertions"`
	UncoveredUnits   int      `json:"uncovered_units"`
}

type candidateSummary struct {
	Iteration int     `json:"iteration"`
	Unit      string  `json:"unit"`
	Verdict   string  `json:"verdict"`
	Score     float64 `json:"score"`
	Feedback  string  `json:"feedback,omitempty"`
}

type yamlSummary struct {
	Project        string    `yaml:"project"`
	Timestamp      time.Time `yaml:"timestamp"`
	CoverageBefore float64   `yaml:"coverage_before"`
	CoverageAfter  float64   `yaml:"coverage_after"`
	MutationBefore string    `yaml:"mutation_before"`
	MutationAfter  string    `yaml:"mutation_after"`
	TestsAdded     int       `yaml:"tests_added"`
	Iterations     int       `yaml:"iterations"`
}

// SaveReport writes all artifacts and returns their paths.
func (s *FileReportStore) SaveReport(dir m.Path, report m.AuditReport, journal pkg.Journal[m.CandidateRecord]) ([]m.Path, error) {
	if err := s.fs.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}

	stamp := report.Timestamp.Format("20060102_150405")

	candidates, err := collectCandidates(journal)
	if err != nil {
		return nil, err
	}

	markdownPath := s.fs.JoinPath(string(dir), fmt.Sprintf("audit_report_%s.md", stamp))
	if err := s.fs.WriteFile(markdownPath, []byte(RenderMarkdown(report)), 0o600); err != nil {
		return nil, fmt.Errorf("write markdown report: %w", err)
	}

	jsonPath := s.fs.JoinPath(string(dir), fmt.Sprintf("audit_data_%s.json", stamp))

	jsonBytes, err := json.MarshalIndent(buildJSONReport(report, candidates), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal audit data: %w", err)
	}

	if err := s.fs.WriteFile(jsonPath, jsonBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write audit data: %w", err)
	}

	yamlPath := s.fs.JoinPath(string(dir), fmt.Sprintf("audit_summary_%s.yaml", stamp))

	yamlBytes, err := yaml.Marshal(buildYAMLSummary(report))
	if err != nil {
		return nil, fmt.Errorf("marshal audit summary: %w", err)
	}

	if err := s.fs.WriteFile(yamlPath, yamlBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write audit summary: %w", err)
	}

	return []m.Path{markdownPath, jsonPath, yamlPath}, nil
}

func collectCandidates(journal pkg.Journal[m.CandidateRecord]) ([]candidateSummary, error) {
	if journal == nil {
		return nil, nil
	}

	var out []candidateSummary

	err := journal.Range(func(_ uint64, rec m.CandidateRecord) error {
		out = append(out, candidateSummary{
			Iteration: rec.Iteration,
			Unit:      rec.Unit.String(),
			Verdict:   string(rec.Verdict),
			Score:     rec.Score,
			Feedback:  rec.Feedback,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay candidate journal: %w", err)
	}

	return out, nil
}

func buildJSONReport(report m.AuditReport, candidates []candidateSummary) jsonReport {
	diags := make([]string, 0, len(report.Diagnostics))
	for _, d := range report.Diagnostics {
		diags = append(diags, d.String())
	}

	return jsonReport{
		Project:         report.Project,
		Timestamp:       report.Timestamp,
		Before:          toJSONMetrics(report.Before),
		After:           toJSONMetrics(report.After),
		Deltas:          report.Deltas,
		TestsAdded:      report.TestsAdded,
		AssertionsAdded: report.AssertionsAdded,
		Recommendations: report.Recommendations,
		Iterations:      len(report.Iterations),
		Diagnostics:     diags,
		Candidates:      candidates,
	}
}

func toJSONMetrics(metrics m.QualityMetrics) jsonMetrics {
	out := jsonMetrics{
		Coverage:         metrics.Coverage,
		AssertionDensity: metrics.AssertionDensity,
		AvgClarity:       metrics.AvgClarity,
		AvgComplexity:    metrics.AvgComplexity,
		MockCoverage:     metrics.MockCoverage,
		TotalTests:       metrics.TotalTests,
		TotalAssertions:  metrics.TotalAssertions,
		UncoveredUnits:   len(metrics.UncoveredUnits),
	}

	switch {
	case metrics.Mutation == nil:
		out.MutationNote = "disabled"
	case metrics.Mutation.Unavailable:
		out.MutationNote = "unavailable: " + metrics.Mutation.Reason
	default:
		score := metrics.Mutation.Score
		out.MutationScore = &score
	}

	return out
}

func buildYAMLSummary(report m.AuditReport) yamlSummary {
	return yamlSummary{
		Project:        report.Project,
		Timestamp:      report.Timestamp,
		CoverageBefore: report.Before.Coverage,
		CoverageAfter:  report.After.Coverage,
		MutationBefore: describeMutation(report.BeforeMutation),
		MutationAfter:  describeMutation(report.AfterMutation),
		TestsAdded:     report.TestsAdded,
		Iterations:     len(report.Iterations),
	}
}

func describeMutation(result *m.MutationResult) string {
	switch {
	case result == nil:
		return "disabled"
	case result.Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("%.1f%%", result.Score)
	}
}

// RenderMarkdown formats the audit report as a markdown document.
func RenderMarkdown(report m.AuditReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Test Quality Audit: %s\n\n", report.Project)
	fmt.Fprintf(&b, "Generated: %s\n\n", report.Timestamp.Format(time.RFC3339))

	b.WriteString("## Metrics\n\n")
	b.WriteString("| Metric | Before | After | Delta |\n")
	b.WriteString("|--------|--------|-------|-------|\n")

	for _, d := range report.Deltas {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %+.2f |\n", d.Name, d.Before, d.After, d.Delta)
	}

	fmt.Fprintf(&b, "\nMutation score before: %s\n", describeMutation(report.BeforeMutation))
	fmt.Fprintf(&b, "Mutation score after: %s\n", describeMutation(report.AfterMutation))

	fmt.Fprintf(&b, "\n## Changes\n\n- Tests added: %d\n- Assertions added: %d\n", report.TestsAdded, report.AssertionsAdded)

	if len(report.AcceptedTests) > 0 {
		b.WriteString("\n### Accepted tests\n\n")

		for _, tc := range report.AcceptedTests {
			fmt.Fprintf(&b, "- `%s` targeting `%s` (%d assertions)\n", tc.Name, tc.Target, tc.Assertions)
		}
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")

		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	if len(report.Diagnostics) > 0 {
		fmt.Fprintf(&b, "\n## Diagnostics (%d)\n\n", len(report.Diagnostics))

		for _, d := range report.Diagnostics {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	return b.String()
}
