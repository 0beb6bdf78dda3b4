// Package ctc is the controller façade. It owns the clock, topology, train
// registry, schedule, authority engine and dispatcher, and settles all of
// them once per tick.
//
// Tick is the only entry point that mutates core state. Every other command
// is validated against the current state and queued as an intent for the
// next tick. Queries read the last published snapshot.
package ctc

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zulandar/ctc/internal/authority"
	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/intent"
	"github.com/zulandar/ctc/internal/kinematics"
	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// ErrStaleCollaborator is reported when a collaborator link exceeds its
// staleness bound or a train reports a position the topology cannot resolve.
var ErrStaleCollaborator = authority.ErrStaleCollaborator

// OperatorSource is the intent source recorded for operator commands.
const OperatorSource = "operator"

// Options holds optional controller settings.
type Options struct {
	Out     io.Writer        // progress lines; io.Discard when nil
	WallNow func() time.Time // staleness clock; time.Now when nil
}

// Controller is the CTC façade.
type Controller struct {
	mu sync.Mutex // guards everything below except the queue, links and snapshot

	clock  *clock.Clock
	topo   *track.Topology
	reg    *trains.Registry
	sched  *schedule.Schedule
	engine *authority.Engine
	disp   *dispatch.Dispatcher

	tick       uint64
	throughput Throughput
	gateCmds   map[string][]GateCommand
	faults     []Fault

	queue *intent.Queue
	links *linkTracker
	out   io.Writer

	snapMu sync.RWMutex
	snap   Snapshot
	subs   map[chan Snapshot]struct{}
}

// New builds a controller from configuration and publishes the initial
// snapshot.
func New(cfg *config.Config, opts Options) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ctc: config is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.WallNow == nil {
		opts.WallNow = time.Now
	}

	topo, err := track.FromConfig(cfg.Lines)
	if err != nil {
		return nil, fmt.Errorf("ctc: %w", err)
	}
	ctl := cfg.Controller
	ck := clock.New(ctl.StartTime, ctl.Step)
	if ctl.Speed > 0 {
		if err := ck.SetSpeed(ctl.Speed); err != nil {
			return nil, fmt.Errorf("ctc: %w", err)
		}
	}
	sched, err := schedule.FromConfig(cfg, ctl.StartTime)
	if err != nil {
		return nil, fmt.Errorf("ctc: %w", err)
	}
	reg := trains.NewRegistry()

	c := &Controller{
		clock: ck,
		topo:  topo,
		reg:   reg,
		sched: sched,
		engine: authority.New(topo, authority.Options{
			Brake:     kinematics.ConstantDeceleration{ADcc: ctl.ServiceBrake},
			Lookahead: ctl.LookaheadBlocks,
			MaxSpeed:  ctl.MaxTrainSpeed,
		}),
		disp:       dispatch.New(topo, reg, sched),
		throughput: Throughput{Since: ctl.StartTime},
		gateCmds:   make(map[string][]GateCommand),
		queue:      intent.NewQueue(ctl.QueueCapacity),
		links:      newLinkTracker(cfg.Collaborators, opts.WallNow),
		out:        opts.Out,
		subs:       make(map[chan Snapshot]struct{}),
	}
	if ctl.AutoStart {
		ck.Start()
	}

	c.mu.Lock()
	c.commandGates()
	snap := c.buildSnapshot(dispatch.Outcome{}, nil, 0)
	c.mu.Unlock()
	c.publish(snap)
	return c, nil
}

// Clock returns the controller's simulation clock. Clock operations are safe
// to call at any time; they take effect at the next tick.
func (c *Controller) Clock() *clock.Clock { return c.clock }

// Snapshot returns the last published snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Trains returns the active trains table from the last snapshot.
func (c *Controller) Trains() []trains.Train { return c.Snapshot().Trains }

// Throughput returns the completion counter from the last snapshot.
func (c *Controller) Throughput() Throughput { return c.Snapshot().Throughput }

// ResetThroughput zeroes the completion counter from the current simulated
// time.
func (c *Controller) ResetThroughput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.throughput = Throughput{Since: c.clock.Now().Now}
}

// Pending returns the intents waiting for the next tick.
func (c *Controller) Pending() []intent.Intent { return c.queue.Pending() }

// Withdraw cancels a queued intent. It fails with intent.ErrNotFound once the
// intent has been drained by a tick.
func (c *Controller) Withdraw(id string) (intent.Intent, error) {
	return c.queue.Withdraw(id)
}

// Push queues a wayside or train-controller report. Reports are not
// validated here: unknown identities are rejected and logged at the tick so a
// single bad push never blocks the link.
func (c *Controller) Push(in intent.Intent) (intent.Intent, error) {
	if in.Kind.Phase() == intent.PhaseOperator {
		return intent.Intent{}, fmt.Errorf("ctc: push: %s is an operator command", in.Kind)
	}
	if in.Source == "" {
		return intent.Intent{}, fmt.Errorf("ctc: push: source is required")
	}
	c.links.touch(in.Source)
	return c.queue.Submit(in)
}

// DispatchManual queues an operator dispatch after checking the destination
// is reachable from the line's yard.
func (c *Controller) DispatchManual(line, destination string, arrival time.Time) (intent.Intent, error) {
	c.mu.Lock()
	_, _, err := c.disp.Validate(line, destination)
	c.mu.Unlock()
	if err != nil {
		return intent.Intent{}, err
	}
	return c.submitOperator(intent.Intent{
		Kind:        intent.Dispatch,
		Line:        line,
		Destination: destination,
		Arrival:     arrival,
	})
}

// RemoveTrain queues removal of an active train.
func (c *Controller) RemoveTrain(id trains.ID) (intent.Intent, error) {
	c.mu.Lock()
	_, err := c.reg.Get(id)
	c.mu.Unlock()
	if err != nil {
		return intent.Intent{}, err
	}
	return c.submitOperator(intent.Intent{Kind: intent.RemoveTrain, Train: id})
}

// SetBlockStatus queues a maintenance open or close of a block.
func (c *Controller) SetBlockStatus(id track.ID, status track.BlockStatus) (intent.Intent, error) {
	if status != track.StatusOpen && status != track.StatusClosed {
		return intent.Intent{}, fmt.Errorf("ctc: block %s: unknown status %q: %w", id, status, track.ErrInvalidState)
	}
	c.mu.Lock()
	_, err := c.topo.Block(id)
	c.mu.Unlock()
	if err != nil {
		return intent.Intent{}, err
	}
	return c.submitOperator(intent.Intent{Kind: intent.BlockStatus, Target: id, Status: status})
}

// CloseBlock closes a block for maintenance.
func (c *Controller) CloseBlock(id track.ID) (intent.Intent, error) {
	return c.SetBlockStatus(id, track.StatusClosed)
}

// OpenBlock returns a block to service.
func (c *Controller) OpenBlock(id track.ID) (intent.Intent, error) {
	return c.SetBlockStatus(id, track.StatusOpen)
}

// ThrowSwitch queues a switch move. A move that would fail now, because a
// connected block is occupied or the switch is locked, is rejected without
// queueing.
func (c *Controller) ThrowSwitch(id track.ID, pos track.SwitchPosition) (intent.Intent, error) {
	c.mu.Lock()
	err := c.topo.CheckSwitchMove(id, pos)
	c.mu.Unlock()
	if err != nil {
		return intent.Intent{}, err
	}
	return c.submitOperator(intent.Intent{Kind: intent.ThrowSwitch, Target: id, Position: pos})
}

// LockSwitch queues locking or unlocking a switch in its current position.
func (c *Controller) LockSwitch(id track.ID, locked bool) (intent.Intent, error) {
	c.mu.Lock()
	_, err := c.topo.Switch(id)
	c.mu.Unlock()
	if err != nil {
		return intent.Intent{}, err
	}
	return c.submitOperator(intent.Intent{Kind: intent.LockSwitch, Target: id, Locked: locked})
}

func (c *Controller) submitOperator(in intent.Intent) (intent.Intent, error) {
	in.Source = OperatorSource
	c.links.touch(in.Source)
	return c.queue.Submit(in)
}
