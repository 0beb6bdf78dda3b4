package ctc

import (
	"errors"
	"fmt"

	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// State is everything needed to resume the controller after a restart:
// topology, registry and schedule state plus the clock and counters.
type State struct {
	Tick       uint64
	Clock      clock.Time
	Topology   track.State
	Trains     trains.State
	Schedule   []schedule.ScheduledTrain
	Throughput Throughput
}

// State exports the controller's mutable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Tick:       c.tick,
		Clock:      c.clock.Now(),
		Topology:   c.topo.State(),
		Trains:     c.reg.State(),
		Schedule:   c.sched.Pending(),
		Throughput: Throughput{Completed: c.throughput.Completed, Since: c.throughput.Since},
	}
}

// Restore resumes from saved state. Elements no longer in the configured
// layout are skipped and reported in the returned error; everything else is
// applied and every train's authority is recomputed before the snapshot is
// republished.
func (c *Controller) Restore(s State) error {
	c.mu.Lock()

	var errs []error
	c.clock.Stop()
	if !s.Clock.Now.IsZero() {
		if err := c.clock.SetTime(s.Clock.Now); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Clock.Speed > 0 {
		if err := c.clock.SetSpeed(s.Clock.Speed); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Clock.Running {
		c.clock.Start()
	}

	if err := c.topo.Restore(s.Topology); err != nil {
		errs = append(errs, err)
	}
	c.reg.Restore(s.Trains)
	if err := c.sched.Restore(s.Schedule); err != nil {
		errs = append(errs, err)
	}
	c.reg.Reserve(c.sched.IDs()...)

	c.tick = s.Tick
	c.throughput = Throughput{Completed: s.Throughput.Completed, Since: s.Throughput.Since}
	c.faults = nil
	c.topo.TakeDirty()
	c.reg.Moved()
	_, recomputeErrs := c.engine.RecomputeAll(c.reg)
	c.recomputeFaults(recomputeErrs)
	c.settle()
	c.heldFaults()
	snap := c.buildSnapshot(dispatch.Outcome{}, nil, 0)
	c.mu.Unlock()

	c.publish(snap)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("ctc: restore: %w", err)
	}
	return nil
}
