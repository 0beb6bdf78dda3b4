package track

import "fmt"

// Every mutator reports whether state actually changed. Replaying the same
// update is a no-op that leaves no dirty marks, so wayside links may deliver
// at-least-once.

// SetBlockOccupancy records whether a train occupies a block.
func (t *Topology) SetBlockOccupancy(id ID, occupied bool) (bool, error) {
	ln, b, err := t.block(id)
	if err != nil {
		return false, err
	}
	if b.Occupied == occupied {
		return false, nil
	}
	b.Occupied = occupied
	t.changed(ln, b.ID.Number)
	return true, nil
}

// SetBlockFailure records the failure kind detected on a block.
func (t *Topology) SetBlockFailure(id ID, f Failure) (bool, error) {
	if !f.valid() {
		return false, fmt.Errorf("track: block %s: unknown failure kind %q", id, f)
	}
	ln, b, err := t.block(id)
	if err != nil {
		return false, err
	}
	if b.Failure == f {
		return false, nil
	}
	b.Failure = f
	t.changed(ln, b.ID.Number)
	return true, nil
}

// SetBlockStatus opens or closes a block for maintenance.
func (t *Topology) SetBlockStatus(id ID, s BlockStatus) (bool, error) {
	if s != StatusOpen && s != StatusClosed {
		return false, fmt.Errorf("track: block %s: unknown status %q", id, s)
	}
	ln, b, err := t.block(id)
	if err != nil {
		return false, err
	}
	if b.Status == s {
		return false, nil
	}
	b.Status = s
	t.changed(ln, b.ID.Number)
	return true, nil
}

// CheckSwitchMove validates a switch move without applying it.
func (t *Topology) CheckSwitchMove(id ID, pos SwitchPosition) error {
	_, _, err := t.checkSwitchMove(id, pos)
	return err
}

func (t *Topology) checkSwitchMove(id ID, pos SwitchPosition) (*line, *Switch, error) {
	if pos != PositionNormal && pos != PositionReverse {
		return nil, nil, fmt.Errorf("track: switch %s: unknown position %q", id, pos)
	}
	ln, sw, err := t.switchByID(id)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range sw.Connected() {
		if ln.blocks[n].Occupied {
			return nil, nil, fmt.Errorf("track: switch %s: block %d occupied: %w", id, n, ErrSwitchBusy)
		}
	}
	if sw.Locked && sw.Position != pos {
		return nil, nil, fmt.Errorf("track: switch %s: locked: %w", id, ErrInvalidState)
	}
	return ln, sw, nil
}

// SetSwitchPosition throws a switch. It fails with ErrSwitchBusy while any
// connected block is occupied, even when the switch already has the requested
// position.
func (t *Topology) SetSwitchPosition(id ID, pos SwitchPosition) (bool, error) {
	ln, sw, err := t.checkSwitchMove(id, pos)
	if err != nil {
		return false, err
	}
	if sw.Position == pos {
		return false, nil
	}
	sw.Position = pos
	t.changed(ln, sw.Connected()...)
	return true, nil
}

// SetSwitchLock locks or unlocks a switch in its current position.
func (t *Topology) SetSwitchLock(id ID, locked bool) (bool, error) {
	ln, sw, err := t.switchByID(id)
	if err != nil {
		return false, err
	}
	if sw.Locked == locked {
		return false, nil
	}
	sw.Locked = locked
	t.changed(ln)
	return true, nil
}

// SetGateStatus records the reported state of a crossing gate.
func (t *Topology) SetGateStatus(id ID, s GateStatus) (bool, error) {
	if s != GateUp && s != GateDown && s != GateFault {
		return false, fmt.Errorf("track: gate %s: unknown status %q", id, s)
	}
	ln, g, err := t.gateByID(id)
	if err != nil {
		return false, err
	}
	if g.Status == s {
		return false, nil
	}
	g.Status = s
	t.changed(ln, g.Block)
	return true, nil
}

// UpdateStationCounts adds passenger counts for one dwell event.
func (t *Topology) UpdateStationCounts(id StationID, entering, leaving int) error {
	if entering < 0 || leaving < 0 {
		return fmt.Errorf("track: station %s: negative passenger counts", id)
	}
	ln, err := t.line(id.Line)
	if err != nil {
		return err
	}
	st, ok := ln.stations[id.Name]
	if !ok {
		return fmt.Errorf("track: station %s: %w", id, ErrUnknownBlock)
	}
	st.Entering += entering
	st.Leaving += leaving
	t.changed(ln)
	return nil
}

// changed marks blocks dirty and re-derives every signal on the line.
func (t *Topology) changed(ln *line, numbers ...int) {
	t.markDirty(ln, numbers...)
	t.recomputeSignals(ln)
}

// Downstream returns the block a train leaving number would enter given the
// current switch positions.
func (t *Topology) Downstream(id ID) (Block, bool) {
	ln, b, err := t.block(id)
	if err != nil {
		return Block{}, false
	}
	n, ok := downstream(ln, b.ID.Number)
	if !ok {
		return Block{}, false
	}
	return ln.blocks[n].clone(), true
}

func downstream(ln *line, n int) (int, bool) {
	if sw, ok := ln.switchByBlock[n]; ok && sw.Block == n {
		return sw.Leg(), true
	}
	for _, next := range ln.blocks[n].Next {
		if aligned(ln, n, next) {
			return next, true
		}
	}
	return 0, false
}

// Aligned reports whether the switches between two adjacent blocks currently
// allow a move from one to the other.
func (t *Topology) Aligned(from, to ID) bool {
	if from.Line != to.Line {
		return false
	}
	ln, err := t.line(from.Line)
	if err != nil {
		return false
	}
	return aligned(ln, from.Number, to.Number)
}

func aligned(ln *line, from, to int) bool {
	for _, n := range []int{from, to} {
		if sw, ok := ln.switchByBlock[n]; ok {
			if guarded, ok := sw.guards(from, to); guarded {
				return ok
			}
		}
	}
	return true
}

// recomputeSignals derives each aspect from the next one or two downstream
// blocks: stop if the next is not clear, caution if the one after it is not
// clear, otherwise clear.
func (t *Topology) recomputeSignals(ln *line) {
	for n, sig := range ln.signals {
		sig.Aspect = aspectFrom(ln, n)
	}
}

func aspectFrom(ln *line, n int) Aspect {
	next, ok := downstream(ln, n)
	if !ok || !ln.blocks[next].Clear() {
		return AspectStop
	}
	after, ok := downstream(ln, next)
	if !ok || !ln.blocks[after].Clear() {
		return AspectCaution
	}
	return AspectClear
}
