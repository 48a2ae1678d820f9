package issue

// Grade is the letter grade derived from a score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// deductions maps severity to the fixed amount each issue subtracts from a
// perfect score of 100.
var deductions = map[Severity]int{
	SeverityCritical: 25,
	SeverityHigh:     15,
	SeverityMedium:   8,
	SeverityLow:      3,
	SeverityInfo:     0,
}

// Deduction returns the score penalty for one issue of the given severity.
func Deduction(s Severity) int {
	return deductions[s]
}

// Score computes the posture score for a set of issues. Deductions are
// independent and summed, so the result does not depend on issue order, and
// the final value is clamped to [0, 100].
func Score(issues []Issue) int {
	score := 100
	for _, is := range issues {
		score -= deductions[is.Severity]
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// GradeFor maps a score to its letter grade. Bands use inclusive lower
// bounds: A >= 90, B >= 75, C >= 60, D >= 40, F otherwise.
func GradeFor(score int) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 75:
		return GradeB
	case score >= 60:
		return GradeC
	case score >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Summary tallies issues by severity. Total always equals the issue count.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Summarize counts issues per severity bucket.
func Summarize(issues []Issue) Summary {
	var s Summary
	for _, is := range issues {
		switch is.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		default:
			s.Info++
		}
	}
	s.Total = len(issues)
	return s
}
