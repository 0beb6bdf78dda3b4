// Package schedule holds planned departures and expands recurring services.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/trains"
)

// ErrNotScheduled is returned when an id has no pending entry.
var ErrNotScheduled = errors.New("not scheduled")

// ScheduledTrain is a planned departure. Entries are immutable; they leave
// the schedule when realized or cancelled.
type ScheduledTrain struct {
	ID          trains.ID `json:"id"`
	Line        string    `json:"line"`
	Destination string    `json:"destination"`
	Departure   time.Time `json:"departure"`
	Arrival     time.Time `json:"arrival"`
	Service     string    `json:"service,omitempty"`
}

// Schedule is the set of pending departures. It is not safe for concurrent
// use.
type Schedule struct {
	entries map[trains.ID]ScheduledTrain
}

// New returns an empty schedule.
func New() *Schedule {
	return &Schedule{entries: make(map[trains.ID]ScheduledTrain)}
}

// FromConfig builds the schedule from explicit entries plus every recurring
// service expanded over the 24 hours starting at day.
func FromConfig(cfg *config.Config, day time.Time) (*Schedule, error) {
	s := New()
	for _, e := range cfg.Schedule {
		if err := s.Add(ScheduledTrain{
			ID:          trains.ID(e.ID),
			Line:        e.Line,
			Destination: e.Destination,
			Departure:   e.Departure,
			Arrival:     e.Arrival,
		}); err != nil {
			return nil, err
		}
	}
	expanded, err := Expand(cfg.Services, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	for _, e := range expanded {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts an entry. IDs must be positive and unique.
func (s *Schedule) Add(e ScheduledTrain) error {
	if e.ID <= 0 {
		return fmt.Errorf("schedule: add: id must be positive, got %d", e.ID)
	}
	if _, dup := s.entries[e.ID]; dup {
		return fmt.Errorf("schedule: add: duplicate id %d", e.ID)
	}
	s.entries[e.ID] = e
	return nil
}

// Cancel withdraws a pending entry.
func (s *Schedule) Cancel(id trains.ID) error {
	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("schedule: cancel %d: %w", id, ErrNotScheduled)
	}
	delete(s.entries, id)
	return nil
}

// Remove drops an entry once it has been realized into a train.
func (s *Schedule) Remove(id trains.ID) {
	delete(s.entries, id)
}

// Get returns a pending entry.
func (s *Schedule) Get(id trains.ID) (ScheduledTrain, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Pending returns every entry ordered by departure, then id.
func (s *Schedule) Pending() []ScheduledTrain {
	out := make([]ScheduledTrain, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out
}

// NextDeparture returns the earliest pending departure. Ties go to the lower
// id.
func (s *Schedule) NextDeparture() (ScheduledTrain, bool) {
	var (
		best  ScheduledTrain
		found bool
	)
	for _, e := range s.entries {
		if !found || before(e, best) {
			best, found = e, true
		}
	}
	return best, found
}

// Due returns the entries whose departure is at or before now, in departure
// order.
func (s *Schedule) Due(now time.Time) []ScheduledTrain {
	var out []ScheduledTrain
	for _, e := range s.entries {
		if !e.Departure.After(now) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out
}

// IDs returns the ids of all pending entries.
func (s *Schedule) IDs() []trains.ID {
	ids := make([]trains.ID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of pending entries.
func (s *Schedule) Len() int { return len(s.entries) }

// Restore replaces the schedule's contents.
func (s *Schedule) Restore(entries []ScheduledTrain) error {
	next := New()
	for _, e := range entries {
		if err := next.Add(e); err != nil {
			return err
		}
	}
	s.entries = next.entries
	return nil
}

func before(a, b ScheduledTrain) bool {
	if !a.Departure.Equal(b.Departure) {
		return a.Departure.Before(b.Departure)
	}
	return a.ID < b.ID
}

func sortEntries(es []ScheduledTrain) {
	sort.Slice(es, func(i, j int) bool { return before(es[i], es[j]) })
}
