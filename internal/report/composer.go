// Package report assembles the final human-readable incident report.
package report

import (
	"fmt"
	"strings"

	"github.com/stacksentry/stacksentry/api/schemas"
)

// Compose merges the diagnosis and the commit-history summary into the
// notification body. It is a pure function and never panics: a nil
// diagnosis or missing sub-fields render as empty interpolations.
func Compose(appName string, d *schemas.Diagnosis, historySummary string) string {
	if d == nil {
		d = &schemas.Diagnosis{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *Incident detected in %s*\n\n", appName)
	fmt.Fprintf(&b, "*Error:* %s: %s (%s, line %s)\n\n", d.ErrorType, d.ErrorMessage, d.TopFrame, d.LineNumber)
	fmt.Fprintf(&b, "*Crash Summary:* %s\n\n", d.Summary)
	fmt.Fprintf(&b, "*Crash Report:*\n%s\n\n", d.CrashReport)
	fmt.Fprintf(&b, "*Recent Commit History:*\n%s\n", historySummary)
	return b.String()
}
