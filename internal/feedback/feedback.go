// Package feedback turns analysis results into human-readable
// consultant feedback and actionable recommendations through an AI
// completion backend. Calls go through the throttle limiter so bursts
// of audits do not blow the provider budget.
package feedback

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pmorten/a11y-auditor/internal/audit"
	"github.com/pmorten/a11y-auditor/internal/throttle"
)

// Completer is a single-turn text completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Report pairs the narrative feedback with numbered recommendations.
type Report struct {
	URL             string      `json:"url"`
	Grade           audit.Grade `json:"grade"`
	Score           int         `json:"score"`
	Feedback        string      `json:"feedback"`
	Recommendations string      `json:"recommendations"`
}

// Feedback caps the narrative length; longer completions are cut at
// the word boundary.
const maxFeedbackWords = 150

// Tokens booked against the limiter per completion. Prompts are small
// and bounded, so a flat estimate is close enough.
const estimatedTokens = 1000

// Generator produces accessibility reports via a Completer.
type Generator struct {
	completer Completer
	limiter   *throttle.Limiter
	log       *zap.Logger
}

// NewGenerator wires a completion backend behind the rate limiter.
func NewGenerator(completer Completer, limiter *throttle.Limiter, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{completer: completer, limiter: limiter, log: log}
}

// Generate produces both feedback and recommendations for a result.
// A failed completion degrades to an error string in the report rather
// than failing the audit.
func (g *Generator) Generate(ctx context.Context, result audit.AnalysisResult) Report {
	report := Report{URL: result.URL, Grade: result.Grade, Score: result.Score}

	feedback, err := g.complete(ctx, feedbackPrompt(result))
	if err != nil {
		g.log.Warn("feedback generation failed", zap.String("url", result.URL), zap.Error(err))
		report.Feedback = fmt.Sprintf("Error generating feedback: %v", err)
	} else {
		report.Feedback = truncateWords(feedback, maxFeedbackWords)
	}

	recs, err := g.complete(ctx, recommendationsPrompt(result))
	if err != nil {
		g.log.Warn("recommendation generation failed", zap.String("url", result.URL), zap.Error(err))
		report.Recommendations = fmt.Sprintf("Error generating recommendations: %v", err)
	} else {
		report.Recommendations = recs
	}
	return report
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.limiter.Do(ctx, estimatedTokens, func(ctx context.Context) error {
		var err error
		out, err = g.completer.Complete(ctx, prompt)
		return err
	})
	return out, err
}

func feedbackPrompt(result audit.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a concise accessibility feedback (maximum %d words) for this WCAG analysis:\n\n", maxFeedbackWords)
	fmt.Fprintf(&b, "URL: %s\n", result.URL)
	fmt.Fprintf(&b, "Overall Grade: %s\n", result.Grade)
	fmt.Fprintf(&b, "Overall Score: %d/100\n", result.Score)
	fmt.Fprintf(&b, "SPA Detected: %t\n\n", result.SPADetected)
	b.WriteString("Principle Scores:\n")
	fmt.Fprintf(&b, "- Perceivable: %d/100\n", result.PrincipleScores[audit.PrinciplePerceivable])
	fmt.Fprintf(&b, "- Operable: %d/100\n", result.PrincipleScores[audit.PrincipleOperable])
	fmt.Fprintf(&b, "- Understandable: %d/100\n", result.PrincipleScores[audit.PrincipleUnderstandable])
	fmt.Fprintf(&b, "- Robust: %d/100\n\n", result.PrincipleScores[audit.PrincipleRobust])
	b.WriteString("Structure your feedback as follows:\n")
	b.WriteString("1. Opening: Domain + overall assessment tone based on score\n")
	b.WriteString("2. SPA note (if applicable): Mention analysis limitations for SPAs\n")
	b.WriteString("3. Principle insights: Group principles by performance (strong 85+, good 70-84, weak <70)\n")
	fmt.Fprintf(&b, "4. Keep under %d words total\n\n", maxFeedbackWords)
	b.WriteString("Focus on being informative yet concise. Use professional accessibility consultant tone.")
	return b.String()
}

// Up to three issues per principle keep the prompt bounded on pages
// with long issue lists.
const issuesPerPrinciple = 3

func recommendationsPrompt(result audit.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("Generate exactly 5 specific accessibility recommendations based on this WCAG analysis.\n\n")
	b.WriteString("ANALYSIS DATA:\n")
	fmt.Fprintf(&b, "Overall Score: %d/100\n\n", result.Score)
	b.WriteString("Principle Scores:\n")
	fmt.Fprintf(&b, "- Principle 1 (Perceivable): %d/100\n", result.PrincipleScores[audit.PrinciplePerceivable])
	fmt.Fprintf(&b, "- Principle 2 (Operable): %d/100\n", result.PrincipleScores[audit.PrincipleOperable])
	fmt.Fprintf(&b, "- Principle 3 (Understandable): %d/100\n", result.PrincipleScores[audit.PrincipleUnderstandable])
	fmt.Fprintf(&b, "- Principle 4 (Robust): %d/100\n\n", result.PrincipleScores[audit.PrincipleRobust])
	b.WriteString("Detected Issues:\n")
	b.WriteString(issuesContext(result))
	b.WriteString("\nREQUIREMENTS:\n")
	b.WriteString("- Generate EXACTLY 5 numbered recommendations (1-5)\n")
	b.WriteString("- Focus on lowest scoring principles first\n")
	b.WriteString("- Be specific and actionable\n")
	b.WriteString("- Include WCAG guideline references where relevant\n")
	b.WriteString("- Only use information from the provided analysis data\n")
	b.WriteString("- If no issues, provide general best practices\n\n")
	b.WriteString("Format: Each recommendation on a new line, numbered 1-5.")
	return b.String()
}

func issuesContext(result audit.AnalysisResult) string {
	failing := make([]audit.Issue, 0, issuesPerPrinciple)
	for _, issue := range result.AllIssues {
		if !issue.Failing() {
			continue
		}
		failing = append(failing, issue)
		if len(failing) == issuesPerPrinciple*len(audit.Principles()) {
			break
		}
	}
	if len(failing) == 0 {
		return "No specific issues provided\n"
	}
	var b strings.Builder
	for _, issue := range failing {
		fmt.Fprintf(&b, "%s: %s\n", issue.Component, issue.Message)
	}
	return b.String()
}

func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ") + "..."
}
