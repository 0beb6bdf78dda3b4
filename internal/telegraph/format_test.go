package telegraph

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/track"
)

func TestFormatFault(t *testing.T) {
	c12 := track.ID{Line: "Green", Section: "C", Number: 12}
	tests := []struct {
		name      string
		fault     ctc.Fault
		title     string
		severity  string
		numFields int
	}{
		{
			name:      "fail safe",
			fault:     ctc.Fault{Kind: ctc.FaultFailSafe, Train: 100, Target: c12, Message: "train 100 held"},
			title:     "Train 100 held at zero authority",
			severity:  "error",
			numFields: 2,
		},
		{
			name:      "stale link",
			fault:     ctc.Fault{Kind: ctc.FaultStaleCollaborator, Source: "wayside-green"},
			title:     "Link wayside-green is stale",
			severity:  "error",
			numFields: 1,
		},
		{
			name:      "train position unknown",
			fault:     ctc.Fault{Kind: ctc.FaultStaleCollaborator, Train: 4, Target: track.ID{Line: "Green", Section: "Z", Number: 99}, Message: "train 4 held"},
			title:     "Train 4 position unknown",
			severity:  "error",
			numFields: 2,
		},
		{
			name:      "stale authority input",
			fault:     ctc.Fault{Kind: ctc.FaultStaleCollaborator},
			title:     "Stale collaborator data",
			severity:  "error",
			numFields: 0,
		},
		{
			name:      "cancelled departure",
			fault:     ctc.Fault{Kind: ctc.FaultCancelled, Train: 12, Message: "origin busy"},
			title:     "Departure 12 cancelled",
			severity:  "warning",
			numFields: 1,
		},
		{
			name:      "rejected report",
			fault:     ctc.Fault{Kind: ctc.FaultRejectedIntent, Source: "train-link", Train: 7},
			title:     "Rejected report from train-link",
			severity:  "info",
			numFields: 2,
		},
		{
			name:     "rejected operator command",
			fault:    ctc.Fault{Kind: ctc.FaultRejectedIntent},
			title:    "Rejected intent",
			severity: "info",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FormatFault(tt.fault)
			if e.Title != tt.title {
				t.Errorf("title = %q, want %q", e.Title, tt.title)
			}
			if e.Severity != tt.severity {
				t.Errorf("severity = %q, want %q", e.Severity, tt.severity)
			}
			if e.Color != severityColor(tt.severity) {
				t.Errorf("color = %q, want %q", e.Color, severityColor(tt.severity))
			}
			if e.Body != tt.fault.Message {
				t.Errorf("body = %q, want %q", e.Body, tt.fault.Message)
			}
			if len(e.Fields) != tt.numFields {
				t.Errorf("fields = %d, want %d", len(e.Fields), tt.numFields)
			}
		})
	}
}

func TestFormatFault_ElementField(t *testing.T) {
	e := FormatFault(ctc.Fault{Kind: ctc.FaultFailSafe, Train: 3, Target: track.ID{Line: "Red", Section: "A", Number: 2}})
	var found bool
	for _, f := range e.Fields {
		if f.Name == "Element" {
			found = true
			if f.Value != "Red/A/2" {
				t.Errorf("element = %q, want Red/A/2", f.Value)
			}
		}
	}
	if !found {
		t.Error("missing Element field")
	}
}

func TestFormatCleared(t *testing.T) {
	held := FormatCleared(ctc.Fault{Kind: ctc.FaultFailSafe, Train: 100})
	if held.Title != "Train 100 released" {
		t.Errorf("title = %q", held.Title)
	}
	if held.Color != ColorSuccess {
		t.Errorf("color = %q, want %q", held.Color, ColorSuccess)
	}

	link := FormatCleared(ctc.Fault{Kind: ctc.FaultStaleCollaborator, Source: "train-link"})
	if link.Title != "Link train-link reconnected" {
		t.Errorf("title = %q", link.Title)
	}

	pos := FormatCleared(ctc.Fault{Kind: ctc.FaultStaleCollaborator, Train: 4})
	if pos.Title != "Train 4 position restored" {
		t.Errorf("title = %q", pos.Title)
	}
}

func TestFormatPulse(t *testing.T) {
	e := FormatPulse(DetectedEvent{
		Type:      EventPulse,
		Tick:      42,
		Time:      time.Date(2026, 1, 5, 6, 30, 0, 0, time.UTC),
		Trains:    3,
		Completed: 5,
		PerHour:   2.5,
	})
	if e.Title != "CTC pulse at 06:30" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Body, "3 trains active") || !strings.Contains(e.Body, "2.5/h") {
		t.Errorf("body = %q", e.Body)
	}
	if e.Severity != "info" {
		t.Errorf("severity = %q, want info", e.Severity)
	}
	if !e.Compact {
		t.Error("pulse should render compact")
	}

	stale := FormatPulse(DetectedEvent{Type: EventPulse, StaleLinks: 1})
	if stale.Severity != "warning" || stale.Color != ColorWarning {
		t.Errorf("stale pulse = %q/%q, want warning", stale.Severity, stale.Color)
	}
}

func TestSeverityColor(t *testing.T) {
	tests := map[string]string{
		"success": ColorSuccess,
		"info":    ColorInfo,
		"warning": ColorWarning,
		"error":   ColorError,
		"unknown": ColorInfo,
	}
	for severity, want := range tests {
		if got := severityColor(severity); got != want {
			t.Errorf("severityColor(%q) = %q, want %q", severity, got, want)
		}
	}
}
