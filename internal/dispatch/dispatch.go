// Package dispatch releases trains onto the line, from the schedule or by
// operator command, and retires them on arrival.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

var (
	// ErrInvalidRoute is returned when a destination cannot be reached from the
	// line's yard.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrOriginBusy is returned when the yard block cannot receive a train.
	ErrOriginBusy = errors.New("origin block not clear")
)

// Dispatcher moves scheduled entries into the registry and places trains on
// their line's yard block.
type Dispatcher struct {
	topo  *track.Topology
	reg   *trains.Registry
	sched *schedule.Schedule
}

// New returns a dispatcher and reserves every scheduled id in the registry.
func New(topo *track.Topology, reg *trains.Registry, sched *schedule.Schedule) *Dispatcher {
	reg.Reserve(sched.IDs()...)
	return &Dispatcher{topo: topo, reg: reg, sched: sched}
}

// Cancellation is a scheduled entry dropped because it can never depart.
type Cancellation struct {
	ID     trains.ID `json:"id"`
	Reason string    `json:"reason"`
}

// Outcome reports what one dispatcher tick did.
type Outcome struct {
	Dispatched []trains.ID    `json:"dispatched,omitempty"`
	Held       []trains.ID    `json:"held,omitempty"`
	Cancelled  []Cancellation `json:"cancelled,omitempty"`
}

// Validate checks that destination is reachable from the line's yard and
// returns the yard block and route.
func (d *Dispatcher) Validate(line, destination string) (track.Block, track.Route, error) {
	yard, err := d.topo.Yard(line)
	if err != nil {
		return track.Block{}, track.Route{}, fmt.Errorf("dispatch: line %q: %v: %w", line, err, ErrInvalidRoute)
	}
	route, err := d.topo.RouteToStation(yard.ID, destination)
	if err != nil {
		return track.Block{}, track.Route{}, fmt.Errorf("dispatch: %s to %q: %v: %w", line, destination, err, ErrInvalidRoute)
	}
	return yard, route, nil
}

// DispatchManual places a new train at the line's yard, bypassing the
// schedule. A zero arrival is replaced by an estimate from line speed limits.
// On error the registry is unchanged.
func (d *Dispatcher) DispatchManual(line, destination string, arrival, now time.Time) (trains.ID, error) {
	yard, route, err := d.Validate(line, destination)
	if err != nil {
		return 0, err
	}
	if !yard.Clear() {
		return 0, fmt.Errorf("dispatch: %s: %w", yard.ID, ErrOriginBusy)
	}
	if arrival.IsZero() {
		arrival = d.Estimate(route, now)
	}
	id, err := d.reg.NewTrain(trains.Spec{
		Line:            line,
		Block:           yard.ID,
		Destination:     destination,
		ExpectedArrival: arrival,
		DispatchedAt:    now,
	})
	if err != nil {
		return 0, fmt.Errorf("dispatch: manual: %w", err)
	}
	if _, err := d.topo.SetBlockOccupancy(yard.ID, true); err != nil {
		return id, fmt.Errorf("dispatch: occupy %s: %w", yard.ID, err)
	}
	return id, nil
}

// Tick realizes every entry due at now. An entry waits while its yard block
// is occupied, failed or closed. An entry whose destination is unreachable is
// cancelled.
func (d *Dispatcher) Tick(now time.Time) Outcome {
	var out Outcome
	for _, e := range d.sched.Due(now) {
		yard, route, err := d.Validate(e.Line, e.Destination)
		if err != nil {
			d.sched.Remove(e.ID)
			out.Cancelled = append(out.Cancelled, Cancellation{ID: e.ID, Reason: err.Error()})
			continue
		}
		if !yard.Clear() {
			out.Held = append(out.Held, e.ID)
			continue
		}
		arrival := e.Arrival
		if arrival.IsZero() {
			arrival = d.Estimate(route, now)
		}
		id, err := d.reg.NewTrain(trains.Spec{
			ID:              e.ID,
			Line:            e.Line,
			Block:           yard.ID,
			Destination:     e.Destination,
			ExpectedArrival: arrival,
			Scheduled:       true,
			DispatchedAt:    now,
		})
		if err != nil {
			d.sched.Remove(e.ID)
			out.Cancelled = append(out.Cancelled, Cancellation{ID: e.ID, Reason: err.Error()})
			continue
		}
		d.sched.Remove(e.ID)
		d.topo.SetBlockOccupancy(yard.ID, true)
		out.Dispatched = append(out.Dispatched, id)
	}
	return out
}

// Estimate returns the arrival time for a route run at each block's speed
// limit.
func (d *Dispatcher) Estimate(route track.Route, now time.Time) time.Time {
	var secs float64
	for _, id := range route.Blocks[min(1, len(route.Blocks)):] {
		b, err := d.topo.Block(id)
		if err != nil || b.SpeedLimit <= 0 {
			continue
		}
		secs += b.Length / b.SpeedLimit
	}
	return now.Add(time.Duration(secs * float64(time.Second)))
}

// RemoveTrain takes a train out of service. Its block is cleared unless
// another train still occupies it.
func (d *Dispatcher) RemoveTrain(id trains.ID) (trains.Train, error) {
	t, err := d.reg.Get(id)
	if err != nil {
		return trains.Train{}, err
	}
	if err := d.reg.Remove(id); err != nil {
		return trains.Train{}, err
	}
	d.release(t.Block)
	return t, nil
}

// Retire removes every train standing on a block of its destination station
// and returns them.
func (d *Dispatcher) Retire() []trains.Train {
	var done []trains.Train
	for _, t := range d.reg.List() {
		if !d.topo.AtStation(t.Block, t.Destination) {
			continue
		}
		if err := d.reg.Remove(t.ID); err != nil {
			continue
		}
		d.release(t.Block)
		done = append(done, t)
	}
	return done
}

func (d *Dispatcher) release(block track.ID) {
	if block.IsZero() || len(d.reg.OnBlock(block)) > 0 {
		return
	}
	d.topo.SetBlockOccupancy(block, false)
}
