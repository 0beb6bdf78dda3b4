package track

import (
	"fmt"
	"sort"

	"github.com/zulandar/ctc/internal/config"
)

// line holds every element of a single line, indexed by number.
type line struct {
	name          string
	yard          int
	blocks        map[int]*Block
	order         []int
	switches      map[int]*Switch
	switchByBlock map[int]*Switch
	gates         map[int]*Gate
	gateByBlock   map[int]*Gate
	signals       map[int]*Signal
	stations      map[string]*Station
	router        *router
}

// Topology is the single source of truth for physical track state.
type Topology struct {
	lines map[string]*line
	names []string
	dirty map[ID]bool
}

// FromConfig builds a Topology from line configuration, validating that every
// successor, switch leg, gate and signal references a block on its line.
func FromConfig(lines []config.LineConfig) (*Topology, error) {
	t := &Topology{
		lines: make(map[string]*line, len(lines)),
		dirty: make(map[ID]bool),
	}
	for _, lc := range lines {
		if _, dup := t.lines[lc.Name]; dup {
			return nil, fmt.Errorf("track: duplicate line %q", lc.Name)
		}
		ln, err := buildLine(lc)
		if err != nil {
			return nil, err
		}
		t.lines[ln.name] = ln
		t.names = append(t.names, ln.name)
		t.recomputeSignals(ln)
	}
	sort.Strings(t.names)
	return t, nil
}

func buildLine(lc config.LineConfig) (*line, error) {
	if lc.Name == "" {
		return nil, fmt.Errorf("track: line name is required")
	}
	ln := &line{
		name:          lc.Name,
		yard:          lc.Yard,
		blocks:        make(map[int]*Block, len(lc.Blocks)),
		switches:      make(map[int]*Switch),
		switchByBlock: make(map[int]*Switch),
		gates:         make(map[int]*Gate),
		gateByBlock:   make(map[int]*Gate),
		signals:       make(map[int]*Signal),
		stations:      make(map[string]*Station),
	}
	for _, bc := range lc.Blocks {
		if bc.Number <= 0 {
			return nil, fmt.Errorf("track: line %q: block number %d must be positive", lc.Name, bc.Number)
		}
		if _, dup := ln.blocks[bc.Number]; dup {
			return nil, fmt.Errorf("track: line %q: duplicate block %d", lc.Name, bc.Number)
		}
		ln.blocks[bc.Number] = &Block{
			ID:         ID{Line: lc.Name, Section: bc.Section, Number: bc.Number},
			Length:     bc.Length,
			SpeedLimit: bc.SpeedLimit,
			Station:    bc.Station,
			Next:       append([]int(nil), bc.Next...),
			Failure:    FailureNone,
			Status:     StatusOpen,
		}
		ln.order = append(ln.order, bc.Number)
		if bc.Station != "" {
			st, ok := ln.stations[bc.Station]
			if !ok {
				st = &Station{ID: StationID{Line: lc.Name, Name: bc.Station}}
				ln.stations[bc.Station] = st
			}
			st.Blocks = append(st.Blocks, bc.Number)
		}
	}
	sort.Ints(ln.order)

	if _, ok := ln.blocks[lc.Yard]; !ok {
		return nil, fmt.Errorf("track: line %q: yard block %d not found", lc.Name, lc.Yard)
	}
	for _, b := range ln.blocks {
		for _, n := range b.Next {
			if _, ok := ln.blocks[n]; !ok {
				return nil, fmt.Errorf("track: line %q: block %d: successor %d not found", lc.Name, b.ID.Number, n)
			}
		}
	}

	for _, sc := range lc.Switches {
		if _, dup := ln.switches[sc.Number]; dup {
			return nil, fmt.Errorf("track: line %q: duplicate switch %d", lc.Name, sc.Number)
		}
		sw := &Switch{
			ID:       ID{Line: lc.Name, Section: sc.Section, Number: sc.Number},
			Block:    sc.Block,
			Normal:   sc.Normal,
			Reverse:  sc.Reverse,
			Position: PositionNormal,
		}
		if sc.Normal == sc.Reverse {
			return nil, fmt.Errorf("track: line %q: switch %d: normal and reverse legs are the same block", lc.Name, sc.Number)
		}
		for _, n := range sw.Connected() {
			if _, ok := ln.blocks[n]; !ok {
				return nil, fmt.Errorf("track: line %q: switch %d: block %d not found", lc.Name, sc.Number, n)
			}
			if other, taken := ln.switchByBlock[n]; taken {
				return nil, fmt.Errorf("track: line %q: block %d belongs to switches %d and %d", lc.Name, n, other.ID.Number, sc.Number)
			}
			ln.switchByBlock[n] = sw
		}
		if !connects(ln, sc.Block, sc.Normal) || !connects(ln, sc.Block, sc.Reverse) {
			return nil, fmt.Errorf("track: line %q: switch %d: legs %d/%d are not connected to block %d",
				lc.Name, sc.Number, sc.Normal, sc.Reverse, sc.Block)
		}
		ln.switches[sc.Number] = sw
	}

	for _, gc := range lc.Gates {
		if _, dup := ln.gates[gc.Number]; dup {
			return nil, fmt.Errorf("track: line %q: duplicate gate %d", lc.Name, gc.Number)
		}
		if _, ok := ln.blocks[gc.Block]; !ok {
			return nil, fmt.Errorf("track: line %q: gate %d: block %d not found", lc.Name, gc.Number, gc.Block)
		}
		g := &Gate{ID: ID{Line: lc.Name, Section: gc.Section, Number: gc.Number}, Block: gc.Block, Status: GateUp}
		ln.gates[gc.Number] = g
		ln.gateByBlock[gc.Block] = g
	}

	for _, n := range lc.Signals {
		b, ok := ln.blocks[n]
		if !ok {
			return nil, fmt.Errorf("track: line %q: signal on unknown block %d", lc.Name, n)
		}
		ln.signals[n] = &Signal{ID: b.ID, Aspect: AspectStop}
	}

	ln.router = newRouter(ln)
	return ln, nil
}

// connects reports whether a and b are joined in either direction.
func connects(ln *line, a, b int) bool {
	for _, n := range ln.blocks[a].Next {
		if n == b {
			return true
		}
	}
	for _, n := range ln.blocks[b].Next {
		if n == a {
			return true
		}
	}
	return false
}

// Lines returns the configured line names in sorted order.
func (t *Topology) Lines() []string {
	return append([]string(nil), t.names...)
}

func (t *Topology) line(name string) (*line, error) {
	ln, ok := t.lines[name]
	if !ok {
		return nil, fmt.Errorf("track: line %q: %w", name, ErrUnknownBlock)
	}
	return ln, nil
}

func (t *Topology) block(id ID) (*line, *Block, error) {
	ln, err := t.line(id.Line)
	if err != nil {
		return nil, nil, err
	}
	b, ok := ln.blocks[id.Number]
	if !ok || b.ID.Section != id.Section {
		return nil, nil, fmt.Errorf("track: block %s: %w", id, ErrUnknownBlock)
	}
	return ln, b, nil
}

func (t *Topology) switchByID(id ID) (*line, *Switch, error) {
	ln, err := t.line(id.Line)
	if err != nil {
		return nil, nil, err
	}
	sw, ok := ln.switches[id.Number]
	if !ok || sw.ID.Section != id.Section {
		return nil, nil, fmt.Errorf("track: switch %s: %w", id, ErrUnknownBlock)
	}
	return ln, sw, nil
}

func (t *Topology) gateByID(id ID) (*line, *Gate, error) {
	ln, err := t.line(id.Line)
	if err != nil {
		return nil, nil, err
	}
	g, ok := ln.gates[id.Number]
	if !ok || g.ID.Section != id.Section {
		return nil, nil, fmt.Errorf("track: gate %s: %w", id, ErrUnknownBlock)
	}
	return ln, g, nil
}

// Block returns a copy of the block with the given identity.
func (t *Topology) Block(id ID) (Block, error) {
	_, b, err := t.block(id)
	if err != nil {
		return Block{}, err
	}
	return b.clone(), nil
}

// BlockByNumber resolves a block from its line and number alone.
func (t *Topology) BlockByNumber(lineName string, number int) (Block, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return Block{}, err
	}
	b, ok := ln.blocks[number]
	if !ok {
		return Block{}, fmt.Errorf("track: line %q: block %d: %w", lineName, number, ErrUnknownBlock)
	}
	return b.clone(), nil
}

// Yard returns the block trains are dispatched onto for a line.
func (t *Topology) Yard(lineName string) (Block, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return Block{}, err
	}
	return ln.blocks[ln.yard].clone(), nil
}

// Blocks returns copies of every block on a line, ordered by number.
func (t *Topology) Blocks(lineName string) ([]Block, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return nil, err
	}
	out := make([]Block, 0, len(ln.order))
	for _, n := range ln.order {
		out = append(out, ln.blocks[n].clone())
	}
	return out, nil
}

// Switch returns a copy of the switch with the given identity.
func (t *Topology) Switch(id ID) (Switch, error) {
	_, sw, err := t.switchByID(id)
	if err != nil {
		return Switch{}, err
	}
	return *sw, nil
}

// Switches returns the switches on a line, ordered by number.
func (t *Topology) Switches(lineName string) ([]Switch, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return nil, err
	}
	out := make([]Switch, 0, len(ln.switches))
	for _, sw := range ln.switches {
		out = append(out, *sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Number < out[j].ID.Number })
	return out, nil
}

// Gate returns a copy of the gate with the given identity.
func (t *Topology) Gate(id ID) (Gate, error) {
	_, g, err := t.gateByID(id)
	if err != nil {
		return Gate{}, err
	}
	return *g, nil
}

// Gates returns the gates on a line, ordered by number.
func (t *Topology) Gates(lineName string) ([]Gate, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return nil, err
	}
	out := make([]Gate, 0, len(ln.gates))
	for _, g := range ln.gates {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Number < out[j].ID.Number })
	return out, nil
}

// GateAt returns the gate guarding a block, if any.
func (t *Topology) GateAt(id ID) (Gate, bool) {
	ln, _, err := t.block(id)
	if err != nil {
		return Gate{}, false
	}
	g, ok := ln.gateByBlock[id.Number]
	if !ok {
		return Gate{}, false
	}
	return *g, true
}

// Signal returns the signal mounted on the given block.
func (t *Topology) Signal(id ID) (Signal, error) {
	ln, _, err := t.block(id)
	if err != nil {
		return Signal{}, err
	}
	s, ok := ln.signals[id.Number]
	if !ok {
		return Signal{}, fmt.Errorf("track: signal %s: %w", id, ErrUnknownBlock)
	}
	return *s, nil
}

// Signals returns the signals on a line, ordered by block number.
func (t *Topology) Signals(lineName string) ([]Signal, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return nil, err
	}
	out := make([]Signal, 0, len(ln.signals))
	for _, n := range ln.order {
		if s, ok := ln.signals[n]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Station returns a copy of the station with the given identity.
func (t *Topology) Station(id StationID) (Station, error) {
	ln, err := t.line(id.Line)
	if err != nil {
		return Station{}, err
	}
	st, ok := ln.stations[id.Name]
	if !ok {
		return Station{}, fmt.Errorf("track: station %s: %w", id, ErrUnknownBlock)
	}
	return st.clone(), nil
}

// Stations returns the stations on a line, ordered by name.
func (t *Topology) Stations(lineName string) ([]Station, error) {
	ln, err := t.line(lineName)
	if err != nil {
		return nil, err
	}
	out := make([]Station, 0, len(ln.stations))
	for _, st := range ln.stations {
		out = append(out, st.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Name < out[j].ID.Name })
	return out, nil
}

// TakeDirty returns the blocks touched by mutations since the last call and
// resets the set.
func (t *Topology) TakeDirty() map[ID]bool {
	d := t.dirty
	t.dirty = make(map[ID]bool)
	return d
}

func (t *Topology) markDirty(ln *line, numbers ...int) {
	for _, n := range numbers {
		if b, ok := ln.blocks[n]; ok {
			t.dirty[b.ID] = true
		}
	}
}
