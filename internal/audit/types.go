// Package audit defines core types shared across subsystems.
package audit

import (
	"encoding/json"
	"time"
)

// Grade buckets a 0-100 compliance score.
type Grade string

// Grade values as they appear in persisted results.
const (
	GradeAAA          Grade = "AAA"
	GradeAA           Grade = "AA"
	GradeA            Grade = "A"
	GradeNotCompliant Grade = "Not WCAG compliant"
	GradeError        Grade = "Error"
)

// PrincipleID identifies one of the four WCAG principles.
type PrincipleID string

// Principle identifiers, matching the keys of the persisted artifact.
const (
	PrinciplePerceivable    PrincipleID = "principle1_perceivable"
	PrincipleOperable       PrincipleID = "principle2_operable"
	PrincipleUnderstandable PrincipleID = "principle3_understandable"
	PrincipleRobust         PrincipleID = "principle4_robust"
)

// Principles lists the four principle IDs in evaluation order.
func Principles() []PrincipleID {
	return []PrincipleID{
		PrinciplePerceivable,
		PrincipleOperable,
		PrincipleUnderstandable,
		PrincipleRobust,
	}
}

// Issue records one checklist component's outcome. Passed == Total is a
// pass; Passed < Total is a finding. Passed may carry a fractional
// component score when the check grades on a curve rather than counting
// elements.
type Issue struct {
	Component string  `json:"component"`
	Message   string  `json:"message"`
	Passed    float64 `json:"passed"`
	Total     float64 `json:"total"`
}

// Failing reports whether the issue represents a violation.
func (i Issue) Failing() bool {
	return i.Passed < i.Total
}

// PrincipleResult is the output of one rule evaluator over one document.
// Immutable once returned.
type PrincipleResult struct {
	Principle PrincipleID `json:"principle"`
	Grade     Grade       `json:"grade"`
	Score     int         `json:"score"`
	Issues    []Issue     `json:"issues"`
}

// Timestamp is a time.Time that fails open on decode: a missing, null,
// or corrupt persisted value becomes the zero time instead of an error,
// so one bad timestamp cannot drop an otherwise valid cache entry.
type Timestamp struct {
	time.Time
}

// MarshalJSON emits RFC 3339, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	b, err := json.Marshal(t.Time)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalJSON decodes RFC 3339 and maps anything else to zero.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var parsed time.Time
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}

// AnalysisResult is the unit stored in the cache and returned to
// callers. The Timestamp and LastAccessed fields are written only by
// the cache; evaluators and the aggregator leave them zero.
type AnalysisResult struct {
	URL             string              `json:"url"`
	Grade           Grade               `json:"grade"`
	Score           int                 `json:"score"`
	PrincipleScores map[PrincipleID]int `json:"principle_scores"`
	PrincipleGrades map[PrincipleID]Grade `json:"principle_grades"`
	SPADetected     bool                `json:"spa_detected"`
	AllIssues       []Issue             `json:"all_issues"`
	AnalysisSeconds float64             `json:"analysis_time_seconds"`
	Timestamp       Timestamp           `json:"timestamp"`
	LastAccessed    Timestamp           `json:"last_accessed"`
}

// Clone returns a deep copy so cached entries cannot be mutated by
// callers.
func (r AnalysisResult) Clone() AnalysisResult {
	cp := r
	if r.PrincipleScores != nil {
		cp.PrincipleScores = make(map[PrincipleID]int, len(r.PrincipleScores))
		for k, v := range r.PrincipleScores {
			cp.PrincipleScores[k] = v
		}
	}
	if r.PrincipleGrades != nil {
		cp.PrincipleGrades = make(map[PrincipleID]Grade, len(r.PrincipleGrades))
		for k, v := range r.PrincipleGrades {
			cp.PrincipleGrades[k] = v
		}
	}
	if r.AllIssues != nil {
		cp.AllIssues = make([]Issue, len(r.AllIssues))
		copy(cp.AllIssues, r.AllIssues)
	}
	return cp
}

// ErrorResult builds the synthetic result used when fetch, parse, or
// analysis fails for a URL. Error results are never persisted.
func ErrorResult(url, component, message string) AnalysisResult {
	return AnalysisResult{
		URL:   url,
		Grade: GradeError,
		Score: 0,
		AllIssues: []Issue{{
			Component: component,
			Message:   message,
			Passed:    0,
			Total:     1,
		}},
	}
}

// FetchResponse is the raw payload a Fetcher returns for one URL.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// CacheStats summarizes the persistent cache contents.
type CacheStats struct {
	Entries    int    `json:"total_entries"`
	TotalBytes int    `json:"total_size_bytes"`
	File       string `json:"cache_file"`
	MaxAgeDays int    `json:"max_age_days"`
}
