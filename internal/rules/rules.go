// Package rules implements the WCAG checklist evaluators. Each
// principle is an ordered registry of named checks; every check
// inspects the document for one success criterion and yields a
// component score in [0,1] plus a human-readable issue.
package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pmorten/a11y-auditor/internal/audit"
)

// CheckResult is one checklist component's outcome.
type CheckResult struct {
	Score float64
	Issue audit.Issue
}

// Check is a single named success-criterion inspection.
type Check struct {
	Name string
	Run  func(doc *goquery.Document) CheckResult
}

// Evaluator runs an ordered check list for one principle.
//
// With Budget zero, the component scores are averaged with equal weight
// and the total is rounded. With a fixed Budget the scores (plus any
// Bonus) are summed, clamped to the budget, and truncated. The rounding
// asymmetry between the two modes is intentional; see DESIGN.md.
type Evaluator struct {
	Principle audit.PrincipleID
	Checks    []Check
	Budget    float64
	Bonus     func(doc *goquery.Document) float64
}

// Per-principle grade thresholds. Deliberately distinct from the
// overall thresholds in the scoring package; see DESIGN.md.
const (
	principleAAAFloor = 95
	principleAAFloor  = 85
	principleAFloor   = 70
)

func gradeForScore(score int) audit.Grade {
	switch {
	case score >= principleAAAFloor:
		return audit.GradeAAA
	case score >= principleAAFloor:
		return audit.GradeAA
	case score >= principleAFloor:
		return audit.GradeA
	default:
		return audit.GradeNotCompliant
	}
}

// Evaluate runs every check and converts the totals to a score and
// grade. It is total: a panic inside any check downgrades the whole
// principle to an Error result rather than propagating.
func (e *Evaluator) Evaluate(doc *goquery.Document) (result audit.PrincipleResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = audit.PrincipleResult{
				Principle: e.Principle,
				Grade:     audit.GradeError,
				Score:     0,
				Issues: []audit.Issue{{
					Component: fmt.Sprintf("WCAG %s analysis", e.Principle),
					Message:   fmt.Sprintf("Analysis failed: %v", rec),
					Passed:    0,
					Total:     1,
				}},
			}
		}
	}()

	if len(e.Checks) == 0 {
		return audit.PrincipleResult{
			Principle: e.Principle,
			Grade:     audit.GradeError,
			Score:     0,
			Issues: []audit.Issue{{
				Component: "General",
				Message:   "No accessibility components analysed.",
				Passed:    0,
				Total:     1,
			}},
		}
	}

	issues := make([]audit.Issue, 0, len(e.Checks))
	sum := 0.0
	for _, check := range e.Checks {
		res := check.Run(doc)
		sum += clamp01(res.Score)
		issues = append(issues, res.Issue)
	}

	var score int
	if e.Budget > 0 {
		total := sum
		if e.Bonus != nil {
			total += e.Bonus(doc)
		}
		if total > e.Budget {
			total = e.Budget
		}
		if total < 0 {
			total = 0
		}
		score = int(total / e.Budget * 100)
	} else {
		score = int(math.Round(sum / float64(len(e.Checks)) * 100))
	}

	return audit.PrincipleResult{
		Principle: e.Principle,
		Grade:     gradeForScore(score),
		Score:     score,
		Issues:    issues,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pass builds a full-credit result for an applicable check.
func pass(component, message string, passed, total float64) CheckResult {
	return CheckResult{
		Score: 1,
		Issue: audit.Issue{Component: component, Message: message, Passed: passed, Total: total},
	}
}

// vacuous builds the result for a check whose applicable element set is
// empty: absence of a hazard is not a violation.
func vacuous(component, message string) CheckResult {
	return CheckResult{
		Score: 1,
		Issue: audit.Issue{Component: component, Message: message, Passed: 1, Total: 1},
	}
}

// ratio builds a proportional result from an element count.
func ratio(component, message string, passed, total int) CheckResult {
	return CheckResult{
		Score: float64(passed) / float64(total),
		Issue: audit.Issue{
			Component: component,
			Message:   message,
			Passed:    float64(passed),
			Total:     float64(total),
		},
	}
}

// scored builds a result whose issue carries the fractional score
// itself rather than an element count.
func scored(component, message string, score float64) CheckResult {
	score = clamp01(score)
	return CheckResult{
		Score: score,
		Issue: audit.Issue{Component: component, Message: message, Passed: score, Total: 1},
	}
}

func trimmedText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func hasAttr(s *goquery.Selection, name string) bool {
	_, ok := s.Attr(name)
	return ok
}

func attrContainsAny(s *goquery.Selection, name string, needles ...string) bool {
	val, ok := s.Attr(name)
	if !ok {
		return false
	}
	val = strings.ToLower(val)
	for _, n := range needles {
		if strings.Contains(val, n) {
			return true
		}
	}
	return false
}
