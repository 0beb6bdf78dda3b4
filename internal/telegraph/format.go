package telegraph

import (
	"fmt"

	"github.com/zulandar/ctc/internal/ctc"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// faultSeverity ranks fault kinds. A train held at zero authority or a
// silent link needs a human; the rest are informational.
func faultSeverity(kind string) string {
	switch kind {
	case ctc.FaultFailSafe, ctc.FaultStaleCollaborator:
		return "error"
	case ctc.FaultCancelled:
		return "warning"
	default:
		return "info"
	}
}

func faultTitle(f ctc.Fault) string {
	switch f.Kind {
	case ctc.FaultFailSafe:
		return fmt.Sprintf("Train %d held at zero authority", f.Train)
	case ctc.FaultStaleCollaborator:
		if f.Source != "" {
			return fmt.Sprintf("Link %s is stale", f.Source)
		}
		if f.Train != 0 {
			return fmt.Sprintf("Train %d position unknown", f.Train)
		}
		return "Stale collaborator data"
	case ctc.FaultCancelled:
		return fmt.Sprintf("Departure %d cancelled", f.Train)
	case ctc.FaultRejectedIntent:
		if f.Source != "" {
			return fmt.Sprintf("Rejected report from %s", f.Source)
		}
		return "Rejected intent"
	}
	return f.Kind
}

func faultFields(f ctc.Fault) []Field {
	var fields []Field
	if f.Train != 0 {
		fields = append(fields, Field{Name: "Train", Value: fmt.Sprint(f.Train), Short: true})
	}
	if !f.Target.IsZero() {
		fields = append(fields, Field{Name: "Element", Value: f.Target.String(), Short: true})
	}
	if f.Source != "" {
		fields = append(fields, Field{Name: "Source", Value: f.Source, Short: true})
	}
	return fields
}

// FormatFault renders a newly raised fault.
func FormatFault(f ctc.Fault) FormattedEvent {
	severity := faultSeverity(f.Kind)
	return FormattedEvent{
		Title:    faultTitle(f),
		Body:     f.Message,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   faultFields(f),
	}
}

// FormatCleared renders a persistent fault that no longer holds.
func FormatCleared(f ctc.Fault) FormattedEvent {
	var title string
	switch f.Kind {
	case ctc.FaultFailSafe:
		title = fmt.Sprintf("Train %d released", f.Train)
	case ctc.FaultStaleCollaborator:
		if f.Source == "" && f.Train != 0 {
			title = fmt.Sprintf("Train %d position restored", f.Train)
			break
		}
		title = fmt.Sprintf("Link %s reconnected", f.Source)
	default:
		title = "Cleared: " + faultTitle(f)
	}
	return FormattedEvent{
		Title:    title,
		Severity: "success",
		Color:    ColorSuccess,
		Fields:   faultFields(f),
	}
}

// FormatPulse renders the periodic controller summary.
func FormatPulse(e DetectedEvent) FormattedEvent {
	severity := "info"
	if e.StaleLinks > 0 {
		severity = "warning"
	}
	return FormattedEvent{
		Title:    fmt.Sprintf("CTC pulse at %s", e.Time.Format("15:04")),
		Body:     fmt.Sprintf("%d trains active, %d completed (%.1f/h)", e.Trains, e.Completed, e.PerHour),
		Severity: severity,
		Color:    severityColor(severity),
		Compact:  true,
		Fields: []Field{
			{Name: "Tick", Value: fmt.Sprint(e.Tick), Short: true},
			{Name: "Faults", Value: fmt.Sprint(e.Faults), Short: true},
			{Name: "Stale links", Value: fmt.Sprint(e.StaleLinks), Short: true},
		},
	}
}
