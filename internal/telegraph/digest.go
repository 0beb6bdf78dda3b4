package telegraph

import (
	"fmt"
	"slices"
	"strings"
)

// severityRank orders severities from least to most urgent.
func severityRank(severity string) int {
	switch severity {
	case "error":
		return 3
	case "warning":
		return 2
	case "info":
		return 1
	default:
		return 0
	}
}

// Worst returns the most urgent severity among events, or "" for none.
func Worst(events []FormattedEvent) string {
	worst := ""
	for _, e := range events {
		if worst == "" || severityRank(e.Severity) > severityRank(worst) {
			worst = e.Severity
		}
	}
	return worst
}

// BySeverity returns a copy of events with the most urgent first. Events of
// equal severity keep their detection order.
func BySeverity(events []FormattedEvent) []FormattedEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b FormattedEvent) int {
		return severityRank(b.Severity) - severityRank(a.Severity)
	})
	return out
}

// Headline is the one-line notification text for a batch of alerts: the
// single title when there is one, otherwise a count by severity.
func Headline(events []FormattedEvent) string {
	switch len(events) {
	case 0:
		return ""
	case 1:
		return events[0].Title
	}
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Severity]++
	}
	var parts []string
	for _, s := range []string{"error", "warning", "info", "success"} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	return fmt.Sprintf("%d CTC alerts (%s)", len(events), strings.Join(parts, ", "))
}

// InlineFields renders fields on one line, for summaries that read better
// compact than as a grid.
func InlineFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Name+" "+f.Value)
	}
	return strings.Join(parts, " | ")
}
