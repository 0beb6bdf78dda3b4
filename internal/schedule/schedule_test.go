package schedule

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/trains"
)

var t0 = time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)

func entry(id trains.ID, dep time.Time) ScheduledTrain {
	return ScheduledTrain{ID: id, Line: "Red", Destination: "Herron", Departure: dep}
}

func ids(es []ScheduledTrain) []trains.ID {
	out := make([]trains.ID, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestNextDeparture_EarliestThenLowestID(t *testing.T) {
	s := New()
	if _, ok := s.NextDeparture(); ok {
		t.Fatal("empty schedule returned a departure")
	}
	s.Add(entry(20, t0.Add(time.Minute)))
	s.Add(entry(15, t0))
	s.Add(entry(12, t0))

	got, ok := s.NextDeparture()
	if !ok || got.ID != 12 {
		t.Errorf("NextDeparture = %v, %v; want id 12", got.ID, ok)
	}
	s.Remove(12)
	if got, _ := s.NextDeparture(); got.ID != 15 {
		t.Errorf("after removing 12, NextDeparture = %d, want 15", got.ID)
	}
}

func TestDue(t *testing.T) {
	s := New()
	s.Add(entry(3, t0.Add(time.Minute)))
	s.Add(entry(2, t0))
	s.Add(entry(1, t0.Add(-time.Minute)))

	tests := []struct {
		now  time.Time
		want []trains.ID
	}{
		{t0.Add(-2 * time.Minute), nil},
		{t0, []trains.ID{1, 2}},
		{t0.Add(time.Hour), []trains.ID{1, 2, 3}},
	}
	for _, tt := range tests {
		got := ids(s.Due(tt.now))
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Due(%s) = %v, want %v", tt.now.Format("15:04"), got, tt.want)
		}
	}
}

func TestAddAndCancel(t *testing.T) {
	s := New()
	if err := s.Add(entry(0, t0)); err == nil {
		t.Error("expected error for zero id")
	}
	if err := s.Add(entry(4, t0)); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(entry(4, t0)); err == nil || !strings.Contains(err.Error(), "duplicate id 4") {
		t.Errorf("duplicate add err = %v", err)
	}
	if err := s.Cancel(4); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.Cancel(4); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("second Cancel err = %v, want ErrNotScheduled", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestExpand_ExampleService(t *testing.T) {
	cfg, err := config.Parse([]byte(config.Example))
	if err != nil {
		t.Fatal(err)
	}
	start := cfg.Controller.StartTime
	got, err := Expand(cfg.Services, start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if want := []trains.ID{100, 101, 102, 103}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	wantDeps := []string{"06:00", "06:30", "07:00", "07:30"}
	for i, e := range got {
		if d := e.Departure.Format("15:04"); d != wantDeps[i] {
			t.Errorf("entry %d departure = %s, want %s", e.ID, d, wantDeps[i])
		}
		if e.Arrival.Sub(e.Departure) != 12*time.Minute {
			t.Errorf("entry %d run time = %v, want 12m", e.ID, e.Arrival.Sub(e.Departure))
		}
		if e.Service != "green-whited" || e.Line != "Green" || e.Destination != "Whited" {
			t.Errorf("entry %d = %+v", e.ID, e)
		}
	}
}

func TestExpand_IncludesStartExcludesEnd(t *testing.T) {
	svc := []config.ServiceConfig{{Name: "hourly", Line: "Red", Destination: "Herron", Cron: "0 * * * *", FirstID: 1}}
	got, err := Expand(svc, t0, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Departure.Equal(t0) {
		t.Errorf("got %+v, want departures at 06:00 and 07:00", got)
	}
	if !got[0].Arrival.IsZero() {
		t.Error("service without run time should leave arrival unset")
	}
}

func TestExpand_BadCron(t *testing.T) {
	svc := []config.ServiceConfig{{Name: "broken", Cron: "every day", FirstID: 1}}
	if _, err := Expand(svc, t0, t0.Add(time.Hour)); err == nil {
		t.Fatal("expected error")
	}
	if err := ValidateCron("*/15 6-9 * * 1-5"); err != nil {
		t.Errorf("ValidateCron: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(config.Example))
	if err != nil {
		t.Fatal(err)
	}
	s, err := FromConfig(cfg, cfg.Controller.StartTime)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	want := []trains.ID{12, 100, 13, 101, 102, 103}
	if got := ids(s.Pending()); !reflect.DeepEqual(got, want) {
		t.Errorf("Pending = %v, want %v", got, want)
	}

	cfg.Services[0].FirstID = 12
	if _, err := FromConfig(cfg, cfg.Controller.StartTime); err == nil {
		t.Error("expected error for service id colliding with explicit entry")
	}
}

func TestRestore(t *testing.T) {
	s := New()
	s.Add(entry(1, t0))
	if err := s.Restore([]ScheduledTrain{entry(5, t0), entry(6, t0)}); err != nil {
		t.Fatal(err)
	}
	if got := s.IDs(); !reflect.DeepEqual(got, []trains.ID{5, 6}) {
		t.Errorf("IDs = %v, want [5 6]", got)
	}
	if err := s.Restore([]ScheduledTrain{entry(5, t0), entry(5, t0)}); err == nil {
		t.Error("expected error restoring duplicates")
	}
	if s.Len() != 2 {
		t.Errorf("failed restore changed schedule: Len = %d", s.Len())
	}
}
