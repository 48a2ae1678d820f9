package cmd

import (
	"github.com/fatih/color"

	"github.com/wardenhq/sitewarden/internal/domain/issue"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func colorSeverity(sev issue.Severity) string {
	switch sev {
	case issue.SeverityCritical:
		return colorError(string(sev))
	case issue.SeverityHigh:
		return colorError(string(sev))
	case issue.SeverityMedium:
		return colorWarn(string(sev))
	case issue.SeverityLow:
		return colorInfo(string(sev))
	default:
		return string(sev)
	}
}

func colorGrade(grade issue.Grade) string {
	switch grade {
	case issue.GradeA, issue.GradeB:
		return colorSuccess(string(grade))
	case issue.GradeC:
		return colorWarn(string(grade))
	default:
		return colorError(string(grade))
	}
}
