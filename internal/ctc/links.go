package ctc

import (
	"sort"
	"sync"
	"time"

	"github.com/zulandar/ctc/internal/config"
)

// LinkStatus is the health of one registered collaborator link.
type LinkStatus struct {
	Name         string        `json:"name"`
	Kind         string        `json:"kind"`
	MaxStaleness time.Duration `json:"max_staleness"`
	LastSeen     time.Time     `json:"last_seen"`
	Stale        bool          `json:"stale"`
}

// linkTracker records when each collaborator was last heard from, in wall
// time. It has its own lock so submissions never wait for a tick.
type linkTracker struct {
	mu    sync.Mutex
	links map[string]*LinkStatus
	now   func() time.Time
}

func newLinkTracker(cfgs []config.CollaboratorConfig, now func() time.Time) *linkTracker {
	lt := &linkTracker{links: make(map[string]*LinkStatus, len(cfgs)), now: now}
	start := now()
	for _, c := range cfgs {
		lt.links[c.Name] = &LinkStatus{
			Name:         c.Name,
			Kind:         c.Kind,
			MaxStaleness: c.MaxStaleness,
			LastSeen:     start,
		}
	}
	return lt
}

// touch refreshes a source. Unregistered sources are not tracked.
func (lt *linkTracker) touch(source string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if l, ok := lt.links[source]; ok {
		l.LastSeen = lt.now()
	}
}

// check updates every link's stale flag and returns the current statuses
// plus the names of links that just went stale and just recovered.
func (lt *linkTracker) check() (all []LinkStatus, wentStale, recovered []string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	now := lt.now()
	for _, l := range lt.links {
		stale := l.MaxStaleness > 0 && now.Sub(l.LastSeen) > l.MaxStaleness
		switch {
		case stale && !l.Stale:
			wentStale = append(wentStale, l.Name)
		case !stale && l.Stale:
			recovered = append(recovered, l.Name)
		}
		l.Stale = stale
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	sort.Strings(wentStale)
	sort.Strings(recovered)
	return all, wentStale, recovered
}
