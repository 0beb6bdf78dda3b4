package ctc

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/ctc/internal/authority"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/intent"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// Tick settles one cycle and publishes its snapshot:
//
//  1. drain the intent queue (withdrawals are closed from here on)
//  2. advance the clock if running
//  3. apply wayside reports to the topology
//  4. apply train telemetry
//  5. recompute authority for affected trains
//  6. derive crossing gate commands
//  7. apply operator commands, then recompute so closures take effect
//  8. realize due departures and compute the new trains
//  9. retire trains that reached their destination
//  10. check collaborator staleness
//  11. publish the snapshot
func (c *Controller) Tick() Snapshot {
	batch := c.queue.Drain()

	c.mu.Lock()
	c.tick++
	c.faults = nil
	c.clock.Advance()
	now := c.clock.Now().Now

	topoIntents, telemetry, operator := intent.Split(batch)
	for _, in := range topoIntents {
		c.reject(in, c.applyTopology(in))
	}
	for _, in := range telemetry {
		c.reject(in, c.applyTelemetry(in))
	}
	c.settle()

	for _, in := range operator {
		c.reject(in, c.applyOperator(in, now))
	}
	c.settle()

	outcome := c.disp.Tick(now)
	for _, id := range outcome.Dispatched {
		if t, err := c.reg.Get(id); err == nil {
			fmt.Fprintf(c.out, "Dispatched train %d on %s to %s\n", t.ID, t.Line, t.Destination)
		}
	}
	for _, cn := range outcome.Cancelled {
		c.fault(Fault{Kind: FaultCancelled, Train: cn.ID, Message: cn.Reason})
	}
	c.settle()

	var retired []trains.ID
	for _, t := range c.disp.Retire() {
		c.engine.Forget(t.ID)
		c.throughput.Completed++
		retired = append(retired, t.ID)
		fmt.Fprintf(c.out, "Train %d arrived at %s\n", t.ID, t.Destination)
	}
	if len(retired) > 0 {
		c.settle()
	}

	c.heldFaults()
	snap := c.buildSnapshot(outcome, retired, len(batch))
	c.mu.Unlock()

	c.publish(snap)
	return snap
}

// settle recomputes affected trains and derives the gate commands for the
// resulting windows.
func (c *Controller) settle() {
	c.recompute()
	c.commandGates()
}

func (c *Controller) recompute() {
	_, errs := c.engine.Recompute(c.reg, c.topo.TakeDirty(), c.reg.Moved())
	c.recomputeFaults(errs)
}

// recomputeFaults records engine failures. Trains held on a block the layout
// does not know are reported by heldFaults on every tick instead, so they are
// skipped here.
func (c *Controller) recomputeFaults(errs []error) {
	for _, err := range errs {
		if errors.Is(err, authority.ErrStaleCollaborator) {
			log.Printf("ctc: %v", err)
			continue
		}
		c.fault(Fault{Kind: FaultRejectedIntent, Message: err.Error()})
	}
}

// commandGates asks for every gate inside a train's window to be lowered
// and the rest raised. Commands are only published; a gate's status stays
// what the wayside last reported, so authority through a crossing waits for
// the wayside to confirm the gate is down.
func (c *Controller) commandGates() {
	want := make(map[track.ID]bool)
	for _, g := range c.engine.Crossings() {
		want[g] = true
	}
	for _, line := range c.topo.Lines() {
		gates, _ := c.topo.Gates(line)
		cmds := make([]GateCommand, 0, len(gates))
		for _, g := range gates {
			status := track.GateUp
			if want[g.ID] {
				status = track.GateDown
			}
			cmds = append(cmds, GateCommand{Gate: g.ID, Status: status})
		}
		c.gateCmds[line] = cmds
	}
}

func (c *Controller) applyTopology(in intent.Intent) error {
	var err error
	switch in.Kind {
	case intent.BlockOccupancy:
		_, err = c.topo.SetBlockOccupancy(in.Target, in.Occupied)
	case intent.BlockFailure:
		_, err = c.topo.SetBlockFailure(in.Target, in.Failure)
	case intent.SwitchPosition:
		_, err = c.topo.SetSwitchPosition(in.Target, in.Position)
	case intent.GateStatus:
		_, err = c.topo.SetGateStatus(in.Target, in.Gate)
	case intent.StationCounts:
		err = c.topo.UpdateStationCounts(in.Station, in.Entering, in.Leaving)
	default:
		err = fmt.Errorf("ctc: unknown intent kind %q", in.Kind)
	}
	return err
}

// applyTelemetry records a train's reported block and speed. A block the
// topology does not know is still recorded so the engine holds the train at
// zero authority.
func (c *Controller) applyTelemetry(in intent.Intent) error {
	prev, err := c.reg.UpdateOccupancy(in.Train, in.Target)
	if err != nil {
		return err
	}
	if err := c.reg.SetSpeed(in.Train, in.Speed); err != nil {
		return err
	}
	if prev == in.Target {
		return nil
	}
	if _, err := c.topo.Block(in.Target); err == nil {
		c.topo.SetBlockOccupancy(in.Target, true)
	}
	if !prev.IsZero() && len(c.reg.OnBlock(prev)) == 0 {
		c.topo.SetBlockOccupancy(prev, false)
	}
	return nil
}

func (c *Controller) applyOperator(in intent.Intent, now time.Time) error {
	switch in.Kind {
	case intent.Dispatch:
		id, err := c.disp.DispatchManual(in.Line, in.Destination, in.Arrival, now)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Dispatched train %d on %s to %s (manual)\n", id, in.Line, in.Destination)
		return nil
	case intent.RemoveTrain:
		t, err := c.disp.RemoveTrain(in.Train)
		if err != nil {
			return err
		}
		c.engine.Forget(t.ID)
		fmt.Fprintf(c.out, "Removed train %d\n", t.ID)
		return nil
	case intent.BlockStatus:
		_, err := c.topo.SetBlockStatus(in.Target, in.Status)
		return err
	case intent.ThrowSwitch:
		_, err := c.topo.SetSwitchPosition(in.Target, in.Position)
		return err
	case intent.LockSwitch:
		_, err := c.topo.SetSwitchLock(in.Target, in.Locked)
		return err
	}
	return fmt.Errorf("ctc: unknown intent kind %q", in.Kind)
}

// reject records a failed intent. A bad push is never fatal.
func (c *Controller) reject(in intent.Intent, err error) {
	if err == nil {
		return
	}
	log.Printf("ctc: apply %s %s from %q: %v", in.Kind, in.ID, in.Source, err)
	c.fault(Fault{
		Kind:    FaultRejectedIntent,
		Source:  in.Source,
		Train:   in.Train,
		Target:  in.Target,
		Message: err.Error(),
	})
}

// heldFaults reports every train held at zero authority because its own
// block failed or closed, or because it was last reported on a block the
// layout does not know. Both persist until the cause clears.
func (c *Controller) heldFaults() {
	for _, t := range c.reg.List() {
		r, ok := c.engine.Last(t.ID)
		if !ok {
			continue
		}
		switch r.Reason {
		case authority.StopFailSafe:
			c.fault(Fault{
				Kind:    FaultFailSafe,
				Train:   t.ID,
				Target:  t.Block,
				Message: fmt.Sprintf("train %d held: block %s failed or closed", t.ID, t.Block),
			})
		case authority.StopUnknown:
			c.fault(Fault{
				Kind:    FaultStaleCollaborator,
				Train:   t.ID,
				Target:  t.Block,
				Message: fmt.Sprintf("train %d held: reported on %s, which the layout does not have: %v", t.ID, t.Block, ErrStaleCollaborator),
			})
		}
	}
}

func (c *Controller) fault(f Fault) {
	c.faults = append(c.faults, f)
}

// buildSnapshot copies all public state. Callers hold c.mu.
func (c *Controller) buildSnapshot(outcome dispatch.Outcome, retired []trains.ID, applied int) Snapshot {
	links, wentStale, recovered := c.links.check()
	for _, name := range wentStale {
		log.Printf("ctc: collaborator %q: %v", name, ErrStaleCollaborator)
	}
	for _, name := range recovered {
		fmt.Fprintf(c.out, "Collaborator %s reconnected\n", name)
	}
	faults := append([]Fault(nil), c.faults...)
	for _, l := range links {
		if l.Stale {
			faults = append(faults, Fault{
				Kind:    FaultStaleCollaborator,
				Source:  l.Name,
				Message: fmt.Sprintf("%s link silent since %s: %v", l.Name, l.LastSeen.Format(time.RFC3339), ErrStaleCollaborator),
			})
		}
	}

	now := c.clock.Now()
	tp := c.throughput
	if hours := now.Now.Sub(tp.Since).Hours(); hours > 0 {
		tp.PerHour = float64(tp.Completed) / hours
	}

	snap := Snapshot{
		Tick:       c.tick,
		Time:       now,
		Trains:     c.reg.List(),
		Schedule:   c.sched.Pending(),
		Dispatch:   outcome,
		Retired:    retired,
		Throughput: tp,
		Links:      links,
		Faults:     faults,
		Applied:    applied,
	}
	for _, name := range c.topo.Lines() {
		ls := LineState{Name: name}
		ls.Blocks, _ = c.topo.Blocks(name)
		ls.Switches, _ = c.topo.Switches(name)
		ls.Gates, _ = c.topo.Gates(name)
		ls.Signals, _ = c.topo.Signals(name)
		ls.Stations, _ = c.topo.Stations(name)
		ls.GateCommands = append([]GateCommand(nil), c.gateCmds[name]...)
		snap.Lines = append(snap.Lines, ls)
	}
	for _, t := range snap.Trains {
		cmd := TrainCommand{Train: t.ID, Authority: t.Authority, SuggestedSpeed: t.SuggestedSpeed}
		if r, ok := c.engine.Last(t.ID); ok {
			cmd.Reason = r.Reason
		}
		snap.Commands = append(snap.Commands, cmd)
	}
	return snap
}
