package ctc

import (
	"fmt"
	"time"

	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// Fault kinds reported in a snapshot.
const (
	FaultStaleCollaborator = "stale_collaborator"
	FaultRejectedIntent    = "rejected_intent"
	FaultFailSafe          = "fail_safe"
	FaultCancelled         = "cancelled_departure"
)

// Snapshot is the settled public state after one tick. It is never modified
// after it is published.
type Snapshot struct {
	Tick       uint64                    `json:"tick"`
	Time       clock.Time                `json:"time"`
	Lines      []LineState               `json:"lines"`
	Trains     []trains.Train            `json:"trains"`
	Commands   []TrainCommand            `json:"commands"`
	Schedule   []schedule.ScheduledTrain `json:"schedule"`
	Dispatch   dispatch.Outcome          `json:"dispatch"`
	Retired    []trains.ID               `json:"retired,omitempty"`
	Throughput Throughput                `json:"throughput"`
	Links      []LinkStatus              `json:"links"`
	Faults     []Fault                   `json:"faults,omitempty"`
	Applied    int                       `json:"applied"`
}

// LineState is every element of one line.
type LineState struct {
	Name         string          `json:"name"`
	Blocks       []track.Block   `json:"blocks"`
	Switches     []track.Switch  `json:"switches"`
	Gates        []track.Gate    `json:"gates"`
	Signals      []track.Signal  `json:"signals"`
	Stations     []track.Station `json:"stations"`
	GateCommands []GateCommand   `json:"gate_commands,omitempty"`
}

// TrainCommand is what the train-controller link pulls for one train.
type TrainCommand struct {
	Train          trains.ID `json:"train"`
	Authority      float64   `json:"authority"`
	SuggestedSpeed float64   `json:"suggested_speed"`
	Reason         string    `json:"reason,omitempty"`
}

// GateCommand is the position the controller wants a crossing gate in.
type GateCommand struct {
	Gate   track.ID         `json:"gate"`
	Status track.GateStatus `json:"status"`
}

// Throughput counts trains that completed their route since the last reset.
type Throughput struct {
	Completed int       `json:"completed"`
	Since     time.Time `json:"since"`
	PerHour   float64   `json:"per_hour"` // per simulated hour
}

// Fault is a non-fatal problem surfaced during a tick.
type Fault struct {
	Kind    string    `json:"kind"`
	Source  string    `json:"source,omitempty"`
	Train   trains.ID `json:"train,omitempty"`
	Target  track.ID  `json:"target,omitzero"`
	Message string    `json:"message"`
}

// Line returns one line from the snapshot.
func (s Snapshot) Line(name string) (LineState, error) {
	for _, l := range s.Lines {
		if l.Name == name {
			return l, nil
		}
	}
	return LineState{}, fmt.Errorf("ctc: line %q: %w", name, track.ErrUnknownBlock)
}

// Block returns one block from the snapshot.
func (s Snapshot) Block(id track.ID) (track.Block, error) {
	l, err := s.Line(id.Line)
	if err != nil {
		return track.Block{}, err
	}
	for _, b := range l.Blocks {
		if b.ID == id {
			return b, nil
		}
	}
	return track.Block{}, fmt.Errorf("ctc: block %s: %w", id, track.ErrUnknownBlock)
}

// Switch returns one switch from the snapshot.
func (s Snapshot) Switch(id track.ID) (track.Switch, error) {
	l, err := s.Line(id.Line)
	if err != nil {
		return track.Switch{}, err
	}
	for _, sw := range l.Switches {
		if sw.ID == id {
			return sw, nil
		}
	}
	return track.Switch{}, fmt.Errorf("ctc: switch %s: %w", id, track.ErrUnknownBlock)
}

// Gate returns one gate from the snapshot.
func (s Snapshot) Gate(id track.ID) (track.Gate, error) {
	l, err := s.Line(id.Line)
	if err != nil {
		return track.Gate{}, err
	}
	for _, g := range l.Gates {
		if g.ID == id {
			return g, nil
		}
	}
	return track.Gate{}, fmt.Errorf("ctc: gate %s: %w", id, track.ErrUnknownBlock)
}

// Station returns one station from the snapshot.
func (s Snapshot) Station(id track.StationID) (track.Station, error) {
	l, err := s.Line(id.Line)
	if err != nil {
		return track.Station{}, err
	}
	for _, st := range l.Stations {
		if st.ID == id {
			return st, nil
		}
	}
	return track.Station{}, fmt.Errorf("ctc: station %s: %w", id, track.ErrUnknownBlock)
}

// Train returns one active train from the snapshot.
func (s Snapshot) Train(id trains.ID) (trains.Train, error) {
	for _, t := range s.Trains {
		if t.ID == id {
			return t, nil
		}
	}
	return trains.Train{}, fmt.Errorf("ctc: train %d: %w", id, trains.ErrUnknownTrain)
}
