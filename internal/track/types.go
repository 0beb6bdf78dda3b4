// Package track models the static and dynamic state of every line: blocks,
// switches, crossing gates, signals and stations.
//
// A Topology is owned by the controller and mutated only from its tick; it is
// not safe for concurrent use.
package track

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBlock is returned for a reference to an identity that is not in
	// the topology. Switch, gate, signal and station lookups wrap it as well.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrSwitchBusy is returned when a switch move is attempted while one of its
	// connected blocks is occupied.
	ErrSwitchBusy = errors.New("switch busy")
	// ErrInvalidState is returned for a mutation the element's state forbids,
	// such as moving a locked switch.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoRoute is returned when no path exists between two blocks.
	ErrNoRoute = errors.New("no route")
)

// ID identifies a block, switch, gate or signal. Numbers are unique within a
// line but not across lines.
type ID struct {
	Line    string `json:"line"`
	Section string `json:"section"`
	Number  int    `json:"number"`
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s/%d", id.Line, id.Section, id.Number)
}

// IsZero reports whether id references nothing.
func (id ID) IsZero() bool { return id == ID{} }

// StationID identifies a station on a line.
type StationID struct {
	Line string `json:"line"`
	Name string `json:"name"`
}

func (id StationID) String() string { return id.Line + "/" + id.Name }

// Failure is the failure kind reported for a block.
type Failure string

const (
	FailureNone         Failure = "none"
	FailureTrackCircuit Failure = "track_circuit"
	FailurePower        Failure = "power"
	FailureBrokenRail   Failure = "broken_rail"
)

func (f Failure) valid() bool {
	switch f {
	case FailureNone, FailureTrackCircuit, FailurePower, FailureBrokenRail:
		return true
	}
	return false
}

// BlockStatus is the maintenance status of a block.
type BlockStatus string

const (
	StatusOpen   BlockStatus = "open"
	StatusClosed BlockStatus = "closed"
)

// SwitchPosition is the leg a switch currently connects to its common block.
type SwitchPosition string

const (
	PositionNormal  SwitchPosition = "normal"
	PositionReverse SwitchPosition = "reverse"
)

// GateStatus is the state of a crossing gate.
type GateStatus string

const (
	GateUp    GateStatus = "up"
	GateDown  GateStatus = "down"
	GateFault GateStatus = "fault"
)

// Aspect is the indication shown by a signal.
type Aspect string

const (
	AspectStop    Aspect = "stop"
	AspectCaution Aspect = "caution"
	AspectClear   Aspect = "clear"
)

// Block is a track segment, the unit of occupancy detection.
type Block struct {
	ID         ID          `json:"id"`
	Length     float64     `json:"length"`      // metres
	SpeedLimit float64     `json:"speed_limit"` // m/s
	Station    string      `json:"station,omitempty"`
	Next       []int       `json:"next,omitempty"`
	Occupied   bool        `json:"occupied"`
	Failure    Failure     `json:"failure"`
	Status     BlockStatus `json:"status"`
}

// Usable reports whether the block may receive authority apart from
// occupancy: it has no failure and is open.
func (b Block) Usable() bool {
	return b.Failure == FailureNone && b.Status == StatusOpen
}

// Clear reports whether the block is usable and unoccupied.
func (b Block) Clear() bool { return b.Usable() && !b.Occupied }

func (b Block) clone() Block {
	b.Next = append([]int(nil), b.Next...)
	return b
}

// Switch connects a common block to one of two legs.
type Switch struct {
	ID       ID             `json:"id"`
	Block    int            `json:"block"`
	Normal   int            `json:"normal"`
	Reverse  int            `json:"reverse"`
	Position SwitchPosition `json:"position"`
	Locked   bool           `json:"locked"`
}

// Leg returns the block number the switch currently connects to Block.
func (s Switch) Leg() int {
	if s.Position == PositionReverse {
		return s.Reverse
	}
	return s.Normal
}

// Connected returns the block numbers whose occupancy pins the switch.
func (s Switch) Connected() []int { return []int{s.Block, s.Normal, s.Reverse} }

// guards reports whether a move between from and to passes through the
// switch, and if so whether its position allows the move.
func (s Switch) guards(from, to int) (guarded, aligned bool) {
	switch {
	case from == s.Block && (to == s.Normal || to == s.Reverse):
		return true, s.Leg() == to
	case to == s.Block && (from == s.Normal || from == s.Reverse):
		return true, s.Leg() == from
	}
	return false, true
}

// Gate is a crossing gate guarding a block.
type Gate struct {
	ID     ID         `json:"id"`
	Block  int        `json:"block"`
	Status GateStatus `json:"status"`
}

// Signal is a derived indication mounted on a block.
type Signal struct {
	ID     ID     `json:"id"`
	Aspect Aspect `json:"aspect"`
}

// Station accumulates passenger counts reported per dwell event.
type Station struct {
	ID       StationID `json:"id"`
	Blocks   []int     `json:"blocks"`
	Entering int       `json:"entering"`
	Leaving  int       `json:"leaving"`
}

func (s Station) clone() Station {
	s.Blocks = append([]int(nil), s.Blocks...)
	return s
}
