package audit

import "sort"

var gradeRank = map[Grade]int{
	GradeAAA:          4,
	GradeAA:           3,
	GradeA:            2,
	GradeNotCompliant: 1,
	GradeError:        0,
}

// SortByGrade orders results best grade first, breaking ties by score
// descending. The sort is stable so equal results keep input order.
func SortByGrade(results []AnalysisResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := gradeRank[results[i].Grade], gradeRank[results[j].Grade]
		if ri != rj {
			return ri > rj
		}
		return results[i].Score > results[j].Score
	})
}
