package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestampMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	ts := Timestamp{Time: now}

	data, err := json.Marshal(ts)
	require.NoError(t, err)

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.Equal(now))
}

func TestTimestampZeroMarshalsNull(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestTimestampFailsOpenOnCorruptValue(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`"not-a-time"`, `12345`, `null`, `{}`} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(raw), &ts), "input %s", raw)
		require.True(t, ts.IsZero(), "input %s", raw)
	}
}

func TestIssueFailing(t *testing.T) {
	t.Parallel()

	require.False(t, Issue{Passed: 3, Total: 3}.Failing())
	require.True(t, Issue{Passed: 2, Total: 3}.Failing())
	require.True(t, Issue{Passed: 0.7, Total: 1}.Failing())
}

func TestAnalysisResultCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := AnalysisResult{
		URL:   "https://example.com",
		Grade: GradeAA,
		Score: 82,
		PrincipleScores: map[PrincipleID]int{
			PrinciplePerceivable: 80,
		},
		PrincipleGrades: map[PrincipleID]Grade{
			PrinciplePerceivable: GradeAA,
		},
		AllIssues: []Issue{{Component: "Page Title", Passed: 1, Total: 1}},
	}

	cp := orig.Clone()
	cp.PrincipleScores[PrinciplePerceivable] = 0
	cp.PrincipleGrades[PrinciplePerceivable] = GradeError
	cp.AllIssues[0].Passed = 0

	require.Equal(t, 80, orig.PrincipleScores[PrinciplePerceivable])
	require.Equal(t, GradeAA, orig.PrincipleGrades[PrinciplePerceivable])
	require.Equal(t, 1.0, orig.AllIssues[0].Passed)
}

func TestErrorResultShape(t *testing.T) {
	t.Parallel()

	res := ErrorResult("https://example.com", "Analysis", "connection refused")
	require.Equal(t, GradeError, res.Grade)
	require.Equal(t, 0, res.Score)
	require.Len(t, res.AllIssues, 1)
	require.True(t, res.AllIssues[0].Failing())
}

func TestSortByGrade(t *testing.T) {
	t.Parallel()

	results := []AnalysisResult{
		{URL: "e", Grade: GradeError, Score: 0},
		{URL: "a", Grade: GradeA, Score: 65},
		{URL: "aaa", Grade: GradeAAA, Score: 96},
		{URL: "nc", Grade: GradeNotCompliant, Score: 40},
		{URL: "aa-high", Grade: GradeAA, Score: 84},
		{URL: "aa-low", Grade: GradeAA, Score: 76},
	}

	SortByGrade(results)

	got := make([]string, 0, len(results))
	for _, r := range results {
		got = append(got, r.URL)
	}
	require.Equal(t, []string{"aaa", "aa-high", "aa-low", "a", "nc", "e"}, got)
}
