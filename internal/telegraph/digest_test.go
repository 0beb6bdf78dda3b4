package telegraph

import "testing"

func events(severities ...string) []FormattedEvent {
	out := make([]FormattedEvent, len(severities))
	for i, s := range severities {
		out[i] = FormattedEvent{Title: s + string(rune('a'+i)), Severity: s}
	}
	return out
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name   string
		events []FormattedEvent
		want   string
	}{
		{"none", nil, ""},
		{"single", events("success"), "success"},
		{"error wins", events("info", "error", "warning"), "error"},
		{"warning over info", events("info", "warning", "success"), "warning"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.events); got != tt.want {
				t.Errorf("Worst = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBySeverity(t *testing.T) {
	in := events("info", "error", "success", "error", "warning")
	got := BySeverity(in)
	want := []string{"errorb", "errord", "warninge", "infoa", "successc"}
	for i, e := range got {
		if e.Title != want[i] {
			t.Errorf("position %d = %q, want %q", i, e.Title, want[i])
		}
	}
	if in[0].Title != "infoa" {
		t.Error("input reordered")
	}
}

func TestHeadline(t *testing.T) {
	tests := []struct {
		name   string
		events []FormattedEvent
		want   string
	}{
		{"none", nil, ""},
		{"single uses its title", []FormattedEvent{{Title: "Train 7 held at zero authority", Severity: "error"}}, "Train 7 held at zero authority"},
		{"counts by severity", events("info", "error", "error", "success"), "4 CTC alerts (2 error, 1 info, 1 success)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Headline(tt.events); got != tt.want {
				t.Errorf("Headline = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInlineFields(t *testing.T) {
	got := InlineFields([]Field{{Name: "Tick", Value: "42"}, {Name: "Stale links", Value: "1"}})
	if got != "Tick 42 | Stale links 1" {
		t.Errorf("InlineFields = %q", got)
	}
	if got := InlineFields(nil); got != "" {
		t.Errorf("InlineFields(nil) = %q, want empty", got)
	}
}
