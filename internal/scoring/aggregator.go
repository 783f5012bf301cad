// Package scoring combines per-principle results into the overall
// compliance verdict.
package scoring

import (
	"github.com/pmorten/a11y-auditor/internal/audit"
)

// Principles 1 and 2 carry most of the weight; static HTML analysis is
// far less reliable for 3 and 4.
var weights = map[audit.PrincipleID]float64{
	audit.PrinciplePerceivable:    0.35,
	audit.PrincipleOperable:       0.35,
	audit.PrincipleUnderstandable: 0.15,
	audit.PrincipleRobust:         0.15,
}

// Overall grade thresholds. Looser than the per-principle ones since
// the weighted mean smooths out single weak principles.
const (
	overallAAAFloor = 85
	overallAAFloor  = 75
	overallAFloor   = 60
)

// SPA shells understate real accessibility, so detected SPAs get a
// softened score with a floor.
const (
	spaDiscount = 0.9
	spaFloor    = 65
)

// Combine folds the four principle results into an overall
// AnalysisResult. Results must be supplied in principle order.
func Combine(url string, results []audit.PrincipleResult, spaDetected bool) audit.AnalysisResult {
	out := audit.AnalysisResult{
		URL:             url,
		SPADetected:     spaDetected,
		PrincipleScores: make(map[audit.PrincipleID]int, len(results)),
		PrincipleGrades: make(map[audit.PrincipleID]audit.Grade, len(results)),
		AllIssues:       make([]audit.Issue, 0),
	}

	weighted := 0.0
	for _, res := range results {
		out.PrincipleScores[res.Principle] = res.Score
		out.PrincipleGrades[res.Principle] = res.Grade
		out.AllIssues = append(out.AllIssues, res.Issues...)
		weighted += float64(res.Score) * weights[res.Principle]
	}

	if spaDetected {
		weighted *= spaDiscount
		if weighted < spaFloor {
			weighted = spaFloor
		}
	}

	out.Score = int(weighted)
	out.Grade = overallGrade(weighted)
	return out
}

func overallGrade(weighted float64) audit.Grade {
	switch {
	case weighted >= overallAAAFloor:
		return audit.GradeAAA
	case weighted >= overallAAFloor:
		return audit.GradeAA
	case weighted >= overallAFloor:
		return audit.GradeA
	default:
		return audit.GradeNotCompliant
	}
}
