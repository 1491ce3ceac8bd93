package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"google.golang.org/genai"

	m "testforge.dev/pkg/testforge/internal/model"
)

// Judgment is the outcome of judging one candidate test.
type Judgment struct {
	Score    float64
	Accepted bool
	Feedback string
}

// Generator produces one candidate test for a code unit. The context string
// carries dependency information for the unit.
type Generator interface {
	Generate(ctx context.Context, unit m.CodeUnit, depContext string) (string, error)
}

// Judge scores a candidate test against the unit it targets and recommends
// acceptance.
type Judge interface {
	Judge(ctx context.Context, candidate string, unit m.CodeUnit, threshold float64) (Judgment, error)
}

// ClarityScorer rates an existing test's readability on a 0-10 scale.
type ClarityScorer interface {
	Score(ctx context.Context, testSource string) (float64, error)
}

// GeminiClient implements Generator, Judge, and ClarityScorer over the
// Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// NewGeminiClient creates a GenAI-backed capability client. A missing API
// key is a configuration error; it is caught here rather than on the first
// request.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &m.ConfigError{Field: "api_key", Reason: "no GenAI API key configured"}
	}

	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Generate asks the model for one Go test function covering the unit.
func (g *GeminiClient) Generate(ctx context.Context, unit m.CodeUnit, depContext string) (string, error) {
	prompt := generatePrompt(unit, depContext)

	text, err := g.complete(ctx, prompt, 0.3)
	if err != nil {
		return "", fmt.Errorf("generate test for %s: %w", unit.ID, err)
	}

	code := ExtractCode(text)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("generate test for %s: empty response", unit.ID)
	}

	return code, nil
}

// Judge scores a candidate and applies the acceptance threshold.
func (g *GeminiClient) Judge(ctx context.Context, candidate string, unit m.CodeUnit, threshold float64) (Judgment, error) {
	prompt := judgePrompt(candidate, unit)

	text, err := g.complete(ctx, prompt, 0.1)
	if err != nil {
		return Judgment{}, fmt.Errorf("judge candidate for %s: %w", unit.ID, err)
	}

	score, feedback, err := ParseScoredResponse(text)
	if err != nil {
		return Judgment{}, fmt.Errorf("judge candidate for %s: %w", unit.ID, err)
	}

	return Judgment{
		Score:    score,
		Accepted: score >= threshold,
		Feedback: feedback,
	}, nil
}

// Score rates an existing test's clarity.
func (g *GeminiClient) Score(ctx context.Context, testSource string) (float64, error) {
	text, err := g.complete(ctx, clarityPrompt(testSource), 0.1)
	if err != nil {
		return 0, fmt.Errorf("clarity score: %w", err)
	}

	score, _, err := ParseScoredResponse(text)
	if err != nil {
		return 0, fmt.Errorf("clarity score: %w", err)
	}

	return score, nil
}

func (g *GeminiClient) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("model returned no text")
	}

	slog.Debug("genai completion", "model", g.model, "prompt_len", len(prompt), "response_len", len(text))

	return text, nil
}

func generatePrompt(unit m.CodeUnit, depContext string) string {
	var b strings.Builder

	b.WriteString("Generate one Go test function for the following code unit.\n\n")
	fmt.Fprintf(&b, "Name: %s\nKind: %s\nFile: %s\nLines: %d-%d\n\n", unit.ID.Name, unit.ID.Kind, unit.File, unit.StartLine, unit.EndLine)
	fmt.Fprintf(&b, "Source:\n```go\n%s\n```\n", unit.Source)

	if depContext != "" {
		fmt.Fprintf(&b, "\nDependencies:\n%s\n", depContext)
	}

	b.WriteString(`
Requirements:
1. Use the standard testing package with testify require/assert.
2. Cover the happy path, at least one edge case, and error behavior where applicable.
3. Use a descriptive test name starting with Test.
4. Mock external dependencies rather than touching network or disk.

Return only the test code, no explanations.`)

	return b.String()
}

func judgePrompt(candidate string, unit m.CodeUnit) string {
	return fmt.Sprintf(`Judge the following generated Go test for the code unit %s.

Unit source:
`+"```go\n%s\n```"+`

Candidate test:
`+"```go\n%s\n```"+`

Score it from 0 to 10 for correctness, assertion strength, and readability.
Respond with the score on the first line, then one short line of feedback.`, unit.ID, unit.Source, candidate)
}

func clarityPrompt(testSource string) string {
	return fmt.Sprintf(`Rate the following Go test for clarity, readability, and structure.
Score from 0 to 10 where 10 is excellent.

`+"```go\n%s\n```"+`

Respond with the score on the first line, optionally followed by one line of feedback.`, testSource)
}

// ExtractCode pulls the first fenced code block out of a model response.
// Responses without a fence are returned trimmed as-is.
func ExtractCode(response string) string {
	for _, fence := range []string{"```go", "```"} {
		start := strings.Index(response, fence)
		if start < 0 {
			continue
		}

		rest := response[start+len(fence):]

		end := strings.Index(rest, "```")
		if end < 0 {
			return strings.TrimSpace(rest)
		}

		return strings.TrimSpace(rest[:end])
	}

	return strings.TrimSpace(response)
}

// ParseScoredResponse reads a numeric 0-10 score from the first line of a
// model response and returns the remainder as feedback. Scores outside the
// scale are clamped.
func ParseScoredResponse(response string) (float64, string, error) {
	lines := strings.SplitN(strings.TrimSpace(response), "\n", 2)

	first := strings.TrimSpace(lines[0])
	first = strings.TrimSuffix(first, "/10")

	fields := strings.Fields(first)
	if len(fields) == 0 {
		return 0, "", fmt.Errorf("empty response")
	}

	score, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, "", fmt.Errorf("no score in response %q: %w", first, err)
	}

	score = min(max(score, 0), 10)

	feedback := ""
	if len(lines) > 1 {
		feedback = strings.TrimSpace(lines[1])
	}

	return score, feedback, nil
}
