package track

import (
	"errors"
	"fmt"
)

// State is the mutable part of a topology, sufficient to resume after a
// restart. Static layout always comes from configuration.
type State struct {
	Blocks   []Block
	Switches []Switch
	Gates    []Gate
	Stations []Station
}

// State exports the mutable state of every line.
func (t *Topology) State() State {
	var s State
	for _, name := range t.names {
		blocks, _ := t.Blocks(name)
		switches, _ := t.Switches(name)
		gates, _ := t.Gates(name)
		stations, _ := t.Stations(name)
		s.Blocks = append(s.Blocks, blocks...)
		s.Switches = append(s.Switches, switches...)
		s.Gates = append(s.Gates, gates...)
		s.Stations = append(s.Stations, stations...)
	}
	return s
}

// Restore applies previously exported state. Elements no longer present in
// the layout are skipped and reported together; everything else is applied.
func (t *Topology) Restore(s State) error {
	var errs []error
	touched := make(map[string]*line)
	for _, in := range s.Blocks {
		ln, b, err := t.block(in.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !in.Failure.valid() || (in.Status != StatusOpen && in.Status != StatusClosed) {
			errs = append(errs, fmt.Errorf("track: restore block %s: invalid failure %q or status %q", in.ID, in.Failure, in.Status))
			continue
		}
		b.Occupied, b.Failure, b.Status = in.Occupied, in.Failure, in.Status
		t.markDirty(ln, b.ID.Number)
		touched[ln.name] = ln
	}
	for _, in := range s.Switches {
		ln, sw, err := t.switchByID(in.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if in.Position == PositionNormal || in.Position == PositionReverse {
			sw.Position = in.Position
		}
		sw.Locked = in.Locked
		t.markDirty(ln, sw.Connected()...)
		touched[ln.name] = ln
	}
	for _, in := range s.Gates {
		ln, g, err := t.gateByID(in.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if in.Status == GateUp || in.Status == GateDown || in.Status == GateFault {
			g.Status = in.Status
		}
		t.markDirty(ln, g.Block)
		touched[ln.name] = ln
	}
	for _, in := range s.Stations {
		ln, err := t.line(in.ID.Line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		st, ok := ln.stations[in.ID.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("track: station %s: %w", in.ID, ErrUnknownBlock))
			continue
		}
		st.Entering, st.Leaving = in.Entering, in.Leaving
	}
	for _, ln := range touched {
		t.recomputeSignals(ln)
	}
	return errors.Join(errs...)
}
