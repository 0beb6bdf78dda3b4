// Package intent provides the bounded queue collaborators use to submit
// mutations for the controller's next tick.
package intent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("intent queue full")
	// ErrNotFound is returned by Withdraw for an id that is not pending,
	// either because it never existed or because it was already drained.
	ErrNotFound = errors.New("intent not found")
)

// Kind names the mutation an intent carries.
type Kind string

const (
	// Wayside pushes.
	BlockOccupancy Kind = "block_occupancy"
	BlockFailure   Kind = "block_failure"
	SwitchPosition Kind = "switch_position"
	GateStatus     Kind = "gate_status"
	StationCounts  Kind = "station_counts"

	// Train-controller pushes.
	Telemetry Kind = "telemetry"

	// Operator commands.
	Dispatch    Kind = "dispatch"
	RemoveTrain Kind = "remove_train"
	BlockStatus Kind = "block_status"
	ThrowSwitch Kind = "throw_switch"
	LockSwitch  Kind = "lock_switch"
)

// Phase orders intents within a tick.
type Phase int

const (
	PhaseTopology Phase = iota
	PhaseTelemetry
	PhaseOperator
)

// Phase returns the tick phase an intent of this kind is applied in.
func (k Kind) Phase() Phase {
	switch k {
	case Telemetry:
		return PhaseTelemetry
	case Dispatch, RemoveTrain, BlockStatus, ThrowSwitch, LockSwitch:
		return PhaseOperator
	}
	return PhaseTopology
}

// Intent is one queued mutation. Only the fields its Kind uses are set.
type Intent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Source    string    `json:"source"`
	Submitted time.Time `json:"submitted"`

	Target   track.ID             `json:"target,omitzero"` // block, switch or gate
	Occupied bool                 `json:"occupied,omitempty"`
	Failure  track.Failure        `json:"failure,omitempty"`
	Status   track.BlockStatus    `json:"status,omitempty"`
	Position track.SwitchPosition `json:"position,omitempty"`
	Locked   bool                 `json:"locked,omitempty"`
	Gate     track.GateStatus     `json:"gate,omitempty"`

	Station  track.StationID `json:"station,omitzero"`
	Entering int             `json:"entering,omitempty"`
	Leaving  int             `json:"leaving,omitempty"`

	Train       trains.ID `json:"train,omitempty"`
	Speed       float64   `json:"speed,omitempty"`
	Line        string    `json:"line,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Arrival     time.Time `json:"arrival,omitzero"`
}

// Queue is a bounded, concurrency-safe intent buffer.
type Queue struct {
	mu       sync.Mutex
	capacity int
	pending  []Intent
	now      func() time.Time
}

// NewQueue returns a queue holding at most capacity intents.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{capacity: capacity, now: time.Now}
}

// Submit enqueues an intent, assigning its id and submission time.
func (q *Queue) Submit(in Intent) (Intent, error) {
	if in.Kind == "" {
		return Intent{}, fmt.Errorf("intent: submit: kind is required")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.capacity {
		return Intent{}, fmt.Errorf("intent: submit %s from %q: %w", in.Kind, in.Source, ErrQueueFull)
	}
	in.ID = uuid.Must(uuid.NewV7()).String()
	in.Submitted = q.now()
	q.pending = append(q.pending, in)
	return in, nil
}

// Withdraw removes a pending intent. Once drained an intent is committed and
// can no longer be withdrawn.
func (q *Queue) Withdraw(id string) (Intent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, in := range q.pending {
		if in.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return in, nil
		}
	}
	return Intent{}, fmt.Errorf("intent: withdraw %s: %w", id, ErrNotFound)
}

// Drain takes every pending intent in submission order and empties the
// queue in one step.
func (q *Queue) Drain() []Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Pending returns a copy of the queued intents.
func (q *Queue) Pending() []Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Intent(nil), q.pending...)
}

// Len returns the number of queued intents.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Split groups drained intents by phase, keeping submission order within
// each phase.
func Split(in []Intent) (topology, telemetry, operator []Intent) {
	for _, it := range in {
		switch it.Kind.Phase() {
		case PhaseTelemetry:
			telemetry = append(telemetry, it)
		case PhaseOperator:
			operator = append(operator, it)
		default:
			topology = append(topology, it)
		}
	}
	return topology, telemetry, operator
}
