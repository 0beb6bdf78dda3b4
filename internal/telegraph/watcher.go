package telegraph

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/ctc/internal/ctc"
)

// DefaultCooldown is how long a one-shot fault (rejected intent, cancelled
// departure) stays muted after it was last sent.
const DefaultCooldown = time.Minute

// Source publishes controller snapshots. *ctc.Controller satisfies it.
type Source interface {
	Subscribe() (<-chan ctc.Snapshot, func())
}

var _ Source = (*ctc.Controller)(nil)

// EventType identifies the kind of event detected by the watcher.
type EventType string

const (
	EventRaised  EventType = "raised"
	EventCleared EventType = "cleared"
	EventPulse   EventType = "pulse"
)

// DetectedEvent is a raw event detected by the watcher before formatting.
type DetectedEvent struct {
	Type  EventType
	Fault ctc.Fault
	Tick  uint64
	Time  time.Time // simulation time of the snapshot

	// Pulse events
	Trains     int
	Completed  int
	PerHour    float64
	Faults     int
	StaleLinks int
}

// Watcher follows controller snapshots and turns fault transitions into
// chat alerts. Persistent faults (fail-safe holds, stale links) alert once
// when raised and once when cleared; one-shot faults alert at most once per
// cooldown for the same train, element and source.
type Watcher struct {
	source        Source
	adapter       Adapter
	channelID     string
	cooldown      time.Duration
	pulseInterval time.Duration
	now           func() time.Time

	mu       sync.Mutex
	active   map[string]ctc.Fault // persistent faults seen in the last snapshot
	lastSent map[string]time.Time // one-shot fault key -> last alert
	seeded   bool
	latest   ctc.Snapshot
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	Source        Source
	Adapter       Adapter
	ChannelID     string
	Cooldown      time.Duration // defaults to DefaultCooldown
	PulseInterval time.Duration // 0 disables the periodic summary
	Now           func() time.Time
}

// NewWatcher creates a Watcher.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("telegraph: watcher: source is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: watcher: adapter is required")
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		source:        opts.Source,
		adapter:       opts.Adapter,
		channelID:     opts.ChannelID,
		cooldown:      cooldown,
		pulseInterval: opts.PulseInterval,
		now:           now,
		active:        make(map[string]ctc.Fault),
		lastSent:      make(map[string]time.Time),
	}, nil
}

func faultKey(f ctc.Fault) string {
	return fmt.Sprintf("%s|%s|%d|%s", f.Kind, f.Source, f.Train, f.Target)
}

func persistent(kind string) bool {
	return kind == ctc.FaultFailSafe || kind == ctc.FaultStaleCollaborator
}

// Observe compares a snapshot against the previous one and returns the
// events worth announcing. The first snapshot seeds the persistent set
// without raising anything, so a restart does not repeat old alerts.
func (w *Watcher) Observe(snap ctc.Snapshot) []DetectedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.latest = snap

	now := w.now()
	current := make(map[string]ctc.Fault)
	var events []DetectedEvent
	for _, f := range snap.Faults {
		key := faultKey(f)
		if persistent(f.Kind) {
			current[key] = f
			if _, ok := w.active[key]; !ok && w.seeded {
				events = append(events, DetectedEvent{Type: EventRaised, Fault: f, Tick: snap.Tick, Time: snap.Time.Now})
			}
			continue
		}
		if last, ok := w.lastSent[key]; ok && now.Sub(last) < w.cooldown {
			continue
		}
		w.lastSent[key] = now
		events = append(events, DetectedEvent{Type: EventRaised, Fault: f, Tick: snap.Tick, Time: snap.Time.Now})
	}
	for key, f := range w.active {
		if _, ok := current[key]; !ok {
			events = append(events, DetectedEvent{Type: EventCleared, Fault: f, Tick: snap.Tick, Time: snap.Time.Now})
		}
	}
	w.active = current
	w.seeded = true

	for key, last := range w.lastSent {
		if now.Sub(last) >= w.cooldown {
			delete(w.lastSent, key)
		}
	}
	return events
}

// BuildPulse summarizes the latest snapshot. It returns nil before the
// first snapshot arrives.
func (w *Watcher) BuildPulse() *DetectedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.seeded {
		return nil
	}
	e := &DetectedEvent{
		Type:      EventPulse,
		Tick:      w.latest.Tick,
		Time:      w.latest.Time.Now,
		Trains:    len(w.latest.Trains),
		Completed: w.latest.Throughput.Completed,
		PerHour:   w.latest.Throughput.PerHour,
		Faults:    len(w.latest.Faults),
	}
	for _, l := range w.latest.Links {
		if l.Stale {
			e.StaleLinks++
		}
	}
	return e
}

// Format renders a detected event for chat.
func Format(e DetectedEvent) FormattedEvent {
	var f FormattedEvent
	switch e.Type {
	case EventCleared:
		f = FormatCleared(e.Fault)
	case EventPulse:
		f = FormatPulse(e)
	default:
		f = FormatFault(e.Fault)
	}
	f.Tick, f.Time = e.Tick, e.Time
	return f
}

// Run sends alerts until ctx is cancelled or the source stops publishing.
// Send failures are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	snaps, cancel := w.source.Subscribe()
	defer cancel()

	var pulse <-chan time.Time
	if w.pulseInterval > 0 {
		ticker := time.NewTicker(w.pulseInterval)
		defer ticker.Stop()
		pulse = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			w.send(ctx, w.Observe(snap))
		case <-pulse:
			if e := w.BuildPulse(); e != nil {
				w.send(ctx, []DetectedEvent{*e})
			}
		}
	}
}

func (w *Watcher) send(ctx context.Context, events []DetectedEvent) {
	if len(events) == 0 {
		return
	}
	msg := OutboundMessage{ChannelID: w.channelID}
	for _, e := range events {
		msg.Events = append(msg.Events, Format(e))
	}
	if err := w.adapter.Send(ctx, msg); err != nil {
		log.Printf("telegraph: send %d alert(s): %v", len(events), err)
	}
}
