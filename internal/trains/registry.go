// Package trains holds the registry of active trains.
//
// The registry is the only owner of train state. Other components read copies
// and propose changes through its mutation methods. Like the topology it is
// owned by the controller and is not safe for concurrent use.
package trains

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/ctc/internal/track"
)

// ErrUnknownTrain is returned for a reference to a train id that is not active.
var ErrUnknownTrain = errors.New("unknown train")

// ID identifies a train. IDs are positive and never reused.
type ID int

// Train is the registry's view of one active train.
type Train struct {
	ID              ID        `json:"id"`
	Line            string    `json:"line"`
	Block           track.ID  `json:"block"`
	Speed           float64   `json:"speed"`           // reported, m/s
	Authority       float64   `json:"authority"`       // metres
	SuggestedSpeed  float64   `json:"suggested_speed"` // m/s
	Destination     string    `json:"destination"`
	ExpectedArrival time.Time `json:"expected_arrival"`
	Scheduled       bool      `json:"scheduled"`
	DispatchedAt    time.Time `json:"dispatched_at"`
}

// Spec holds parameters for creating a train. A zero ID asks the registry to
// allocate one.
type Spec struct {
	ID              ID
	Line            string
	Block           track.ID
	Destination     string
	ExpectedArrival time.Time
	Scheduled       bool
	DispatchedAt    time.Time
}

// Registry is the set of active trains.
type Registry struct {
	trains   map[ID]*Train
	issued   map[ID]bool
	reserved map[ID]bool
	next     ID
	moved    map[ID]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		trains:   make(map[ID]*Train),
		issued:   make(map[ID]bool),
		reserved: make(map[ID]bool),
		next:     1,
		moved:    make(map[ID]bool),
	}
}

// Reserve holds ids for scheduled trains so allocation skips them.
func (r *Registry) Reserve(ids ...ID) {
	for _, id := range ids {
		if id > 0 {
			r.reserved[id] = true
		}
	}
}

// NewTrain creates a train. A requested id is granted only if it has never
// been issued; otherwise a fresh id is allocated.
func (r *Registry) NewTrain(s Spec) (ID, error) {
	if s.Line == "" {
		return 0, fmt.Errorf("trains: new: line is required")
	}
	if s.Destination == "" {
		return 0, fmt.Errorf("trains: new: destination is required")
	}

	id := s.ID
	if id <= 0 || r.issued[id] {
		id = r.allocate()
	}
	r.issued[id] = true
	delete(r.reserved, id)
	if id >= r.next {
		r.next = id + 1
	}

	r.trains[id] = &Train{
		ID:              id,
		Line:            s.Line,
		Block:           s.Block,
		Destination:     s.Destination,
		ExpectedArrival: s.ExpectedArrival,
		Scheduled:       s.Scheduled,
		DispatchedAt:    s.DispatchedAt,
	}
	r.moved[id] = true
	return id, nil
}

func (r *Registry) allocate() ID {
	for r.issued[r.next] || r.reserved[r.next] {
		r.next++
	}
	id := r.next
	r.next++
	return id
}

// NextID returns the id the next allocation would start from.
func (r *Registry) NextID() ID { return r.next }

func (r *Registry) get(id ID) (*Train, error) {
	t, ok := r.trains[id]
	if !ok {
		return nil, fmt.Errorf("trains: train %d: %w", id, ErrUnknownTrain)
	}
	return t, nil
}

// Remove deletes an active train. Its id stays issued.
func (r *Registry) Remove(id ID) error {
	if _, err := r.get(id); err != nil {
		return err
	}
	delete(r.trains, id)
	delete(r.moved, id)
	return nil
}

// UpdateOccupancy records the block a train occupies and returns the block it
// occupied before.
func (r *Registry) UpdateOccupancy(id ID, block track.ID) (track.ID, error) {
	t, err := r.get(id)
	if err != nil {
		return track.ID{}, err
	}
	prev := t.Block
	if prev != block {
		t.Block = block
		r.moved[id] = true
	}
	return prev, nil
}

// SetSpeed records the speed reported by the train.
func (r *Registry) SetSpeed(id ID, v float64) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("trains: train %d: negative speed %v", id, v)
	}
	t.Speed = v
	return nil
}

// SetAuthority records the computed authority and suggested speed.
func (r *Registry) SetAuthority(id ID, authority, suggested float64) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.Authority, t.SuggestedSpeed = authority, suggested
	return nil
}

// SetDestination changes the station a train is routed to.
func (r *Registry) SetDestination(id ID, station string) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	if station == "" {
		return fmt.Errorf("trains: train %d: destination is required", id)
	}
	if t.Destination != station {
		t.Destination = station
		r.moved[id] = true
	}
	return nil
}

// SetArrivalEstimate records the expected arrival time.
func (r *Registry) SetArrivalEstimate(id ID, at time.Time) error {
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.ExpectedArrival = at
	return nil
}

// Get returns a copy of one train.
func (r *Registry) Get(id ID) (Train, error) {
	t, err := r.get(id)
	if err != nil {
		return Train{}, err
	}
	return *t, nil
}

// List returns copies of all active trains ordered by id.
func (r *Registry) List() []Train {
	out := make([]Train, 0, len(r.trains))
	for _, t := range r.trains {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OnBlock returns the ids of trains occupying a block, ordered by id.
func (r *Registry) OnBlock(block track.ID) []ID {
	var ids []ID
	for id, t := range r.trains {
		if t.Block == block {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of active trains.
func (r *Registry) Len() int { return len(r.trains) }

// Moved returns the trains whose position or destination changed since the
// last call, and resets the set.
func (r *Registry) Moved() map[ID]bool {
	m := r.moved
	r.moved = make(map[ID]bool)
	return m
}
