// Package authority computes movement authority and suggested speed for
// active trains.
//
// Authority is the distance a train may advance along its route before it
// must stop: the summed length of the clear, correctly aligned blocks ahead,
// ending at the first block that is occupied, failed, closed, reached through
// a switch in the wrong position, or a crossing whose gate is not down.
// Suggested speed never exceeds the speed from which the train can stop within
// that distance.
package authority

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/zulandar/ctc/internal/kinematics"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

// ErrStaleCollaborator is returned when a train reports a position the
// topology cannot resolve. The train is held at zero authority.
var ErrStaleCollaborator = errors.New("stale collaborator")

// Reasons a walk stopped.
const (
	StopOccupied    = "occupied"
	StopFailed      = "failed"
	StopClosed      = "closed"
	StopSwitch      = "switch"
	StopGate        = "gate"
	StopDestination = "destination"
	StopLookahead   = "lookahead"
	StopFailSafe    = "fail_safe"
	StopNoRoute     = "no_route"
	StopUnknown     = "unknown_block"
)

// Result is one train's computed authority.
type Result struct {
	Train     trains.ID  `json:"train"`
	Authority float64    `json:"authority"` // metres
	Speed     float64    `json:"speed"`     // m/s
	Window    []track.ID `json:"window"`    // current block, then every block examined
	Crossings []track.ID `json:"crossings,omitempty"`
	StoppedAt track.ID   `json:"stopped_at"`
	Reason    string     `json:"reason"`
}

// Options configures an Engine.
type Options struct {
	Brake     kinematics.BrakingModel
	Lookahead int     // blocks beyond the current one
	MaxSpeed  float64 // train maximum, m/s
}

// Engine computes authority against a topology and remembers each train's
// last window so it only recomputes trains affected by a change.
type Engine struct {
	topo      *track.Topology
	brake     kinematics.BrakingModel
	lookahead int
	maxSpeed  float64
	last      map[trains.ID]Result
}

// New returns an engine. Missing options fall back to the default service
// brake, an eight block lookahead and no speed cap beyond line limits.
func New(topo *track.Topology, opts Options) *Engine {
	if opts.Brake == nil {
		opts.Brake = kinematics.ConstantDeceleration{ADcc: kinematics.DefaultServiceBrake}
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = 8
	}
	if opts.MaxSpeed <= 0 {
		opts.MaxSpeed = math.Inf(1)
	}
	return &Engine{
		topo:      topo,
		brake:     opts.Brake,
		lookahead: opts.Lookahead,
		maxSpeed:  opts.MaxSpeed,
		last:      make(map[trains.ID]Result),
	}
}

// Compute walks the route ahead of one train. It never fails open: every
// error path yields zero authority and zero speed.
func (e *Engine) Compute(t trains.Train) (Result, error) {
	r := Result{Train: t.ID}

	cur, err := e.topo.Block(t.Block)
	if err != nil {
		r.Reason = StopUnknown
		return r, fmt.Errorf("authority: train %d reported on %s: %v: %w", t.ID, t.Block, err, ErrStaleCollaborator)
	}
	r.Window = []track.ID{cur.ID}
	if g, ok := e.topo.GateAt(cur.ID); ok {
		r.Crossings = append(r.Crossings, g.ID)
	}
	if !cur.Usable() {
		r.StoppedAt, r.Reason = cur.ID, StopFailSafe
		return r, nil
	}

	route, err := e.topo.RouteToStation(cur.ID, t.Destination)
	if err != nil {
		r.StoppedAt, r.Reason = cur.ID, StopNoRoute
		return r, nil
	}

	limit := math.Min(e.maxSpeed, cur.SpeedLimit)
	r.Reason = StopDestination
	prev := cur.ID
	for i := 1; i < len(route.Blocks); i++ {
		if i > e.lookahead {
			r.Reason = StopLookahead
			break
		}
		b, err := e.topo.Block(route.Blocks[i])
		if err != nil {
			r.StoppedAt, r.Reason = route.Blocks[i], StopUnknown
			break
		}
		r.Window = append(r.Window, b.ID)
		if reason := blocked(b); reason != "" {
			r.StoppedAt, r.Reason = b.ID, reason
			break
		}
		if !e.topo.Aligned(prev, b.ID) {
			r.StoppedAt, r.Reason = b.ID, StopSwitch
			break
		}
		if g, ok := e.topo.GateAt(b.ID); ok {
			r.Crossings = append(r.Crossings, g.ID)
			if g.Status != track.GateDown {
				r.StoppedAt, r.Reason = b.ID, StopGate
				break
			}
		}
		r.Authority += b.Length
		limit = math.Min(limit, b.SpeedLimit)
		prev = b.ID
	}

	r.Speed = e.cap(limit, r.Authority)
	return r, nil
}

func blocked(b track.Block) string {
	switch {
	case b.Failure != track.FailureNone:
		return StopFailed
	case b.Status != track.StatusOpen:
		return StopClosed
	case b.Occupied:
		return StopOccupied
	}
	return ""
}

// cap bounds limit by the braking model so the train stops within authority.
func (e *Engine) cap(limit, authority float64) float64 {
	if authority <= 0 || limit <= 0 {
		return 0
	}
	v := math.Min(limit, e.brake.MaxSpeedWithin(authority))
	for v > 0 && e.brake.BrakingDistance(v) > authority {
		v = math.Nextafter(v, 0)
	}
	return v
}

// Recompute refreshes authority for every train that moved, is new to the
// engine, or whose last window contains a dirty block, and writes the result
// back through the registry. A failure for one train never stops the others;
// the failures are returned alongside the results.
func (e *Engine) Recompute(reg *trains.Registry, dirty map[track.ID]bool, moved map[trains.ID]bool) ([]Result, []error) {
	var (
		out  []Result
		errs []error
	)
	for _, t := range reg.List() {
		if !e.affected(t.ID, dirty, moved) {
			continue
		}
		r, err := e.Compute(t)
		if err != nil {
			errs = append(errs, err)
		}
		e.last[t.ID] = r
		if err := reg.SetAuthority(t.ID, r.Authority, r.Speed); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errs
}

// RecomputeAll refreshes every active train.
func (e *Engine) RecomputeAll(reg *trains.Registry) ([]Result, []error) {
	clear(e.last)
	return e.Recompute(reg, nil, nil)
}

func (e *Engine) affected(id trains.ID, dirty map[track.ID]bool, moved map[trains.ID]bool) bool {
	if moved[id] {
		return true
	}
	last, ok := e.last[id]
	if !ok {
		return true
	}
	for _, b := range last.Window {
		if dirty[b] {
			return true
		}
	}
	return false
}

// Forget drops a removed train's window.
func (e *Engine) Forget(id trains.ID) { delete(e.last, id) }

// Last returns the most recent result for a train.
func (e *Engine) Last(id trains.ID) (Result, bool) {
	r, ok := e.last[id]
	return r, ok
}

// Crossings returns the gates inside any train's window, ordered by identity.
func (e *Engine) Crossings() []track.ID {
	seen := make(map[track.ID]bool)
	var out []track.ID
	for _, r := range e.last {
		for _, g := range r.Crossings {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
