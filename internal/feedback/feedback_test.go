package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/throttle"
)

type fakeCompleter struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func testLimiter() *throttle.Limiter {
	return throttle.New(throttle.Options{BaseDelay: time.Millisecond})
}

func sampleResult() audit.AnalysisResult {
	return audit.AnalysisResult{
		URL:   "https://example.com",
		Grade: audit.GradeAA,
		Score: 78,
		PrincipleScores: map[audit.PrincipleID]int{
			audit.PrinciplePerceivable:    80,
			audit.PrincipleOperable:       85,
			audit.PrincipleUnderstandable: 65,
			audit.PrincipleRobust:         70,
		},
		AllIssues: []audit.Issue{
			{Component: "1.1.1 Non-text Content", Message: "2/5 images have alt attributes", Passed: 2, Total: 5},
			{Component: "Page Title", Message: "Page title: Present", Passed: 1, Total: 1},
		},
	}
}

func TestGenerateBuildsPromptsFromResult(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{responses: []string{"solid feedback", "1. do things"}}
	g := NewGenerator(completer, testLimiter(), nil)

	report := g.Generate(context.Background(), sampleResult())
	require.Equal(t, "solid feedback", report.Feedback)
	require.Equal(t, "1. do things", report.Recommendations)
	require.Equal(t, "https://example.com", report.URL)
	require.Equal(t, audit.GradeAA, report.Grade)
	require.Equal(t, 78, report.Score)

	require.Len(t, completer.prompts, 2)
	require.Contains(t, completer.prompts[0], "URL: https://example.com")
	require.Contains(t, completer.prompts[0], "Overall Score: 78/100")
	require.Contains(t, completer.prompts[0], "- Understandable: 65/100")
	require.Contains(t, completer.prompts[1], "EXACTLY 5 numbered recommendations")
	// Only failing issues feed the recommendations context.
	require.Contains(t, completer.prompts[1], "2/5 images have alt attributes")
	require.NotContains(t, completer.prompts[1], "Page title: Present")
}

func TestGenerateTruncatesLongFeedback(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 200)
	completer := &fakeCompleter{responses: []string{long, "recs"}}
	g := NewGenerator(completer, testLimiter(), nil)

	report := g.Generate(context.Background(), sampleResult())
	require.Len(t, strings.Fields(report.Feedback), 150)
	require.True(t, strings.HasSuffix(report.Feedback, "..."))
}

func TestGenerateDegradesOnCompleterFailure(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{err: errors.New("model offline")}
	g := NewGenerator(completer, testLimiter(), nil)

	report := g.Generate(context.Background(), sampleResult())
	require.Contains(t, report.Feedback, "Error generating feedback")
	require.Contains(t, report.Recommendations, "Error generating recommendations")
	require.Contains(t, report.Feedback, "model offline")
}

func TestGenerateNoFailingIssues(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.AllIssues = []audit.Issue{{Component: "c", Message: "m", Passed: 1, Total: 1}}

	completer := &fakeCompleter{responses: []string{"fb", "recs"}}
	g := NewGenerator(completer, testLimiter(), nil)
	g.Generate(context.Background(), res)

	require.Contains(t, completer.prompts[1], "No specific issues provided")
}
