package track

import (
	"fmt"
	"math"
)

// router holds all-pairs shortest paths for one line. Edge weights are the
// length of the block being entered, so a route's length is the distance a
// train covers after leaving its current block. Routes ignore switch
// positions: they describe where a train could go, not where it may go now.
type router struct {
	dist map[int]map[int]float64
	next map[int]map[int]int
}

// newRouter runs Floyd-Warshall over the line's block graph.
func newRouter(ln *line) *router {
	dist := make(map[int]map[int]float64, len(ln.order))
	next := make(map[int]map[int]int, len(ln.order))
	for _, i := range ln.order {
		dist[i] = make(map[int]float64, len(ln.order))
		next[i] = make(map[int]int, len(ln.order))
		for _, j := range ln.order {
			dist[i][j] = math.Inf(1)
		}
		dist[i][i] = 0
	}
	for _, i := range ln.order {
		for _, j := range ln.blocks[i].Next {
			if l := ln.blocks[j].Length; l < dist[i][j] {
				dist[i][j] = l
				next[i][j] = j
			}
		}
	}
	for _, k := range ln.order {
		for _, i := range ln.order {
			for _, j := range ln.order {
				if d := dist[i][k] + dist[k][j]; d < dist[i][j] {
					dist[i][j] = d
					next[i][j] = next[i][k]
				}
			}
		}
	}
	return &router{dist: dist, next: next}
}

func (r *router) path(from, to int) ([]int, float64, bool) {
	d, ok := r.dist[from][to]
	if !ok || math.IsInf(d, 1) {
		return nil, 0, false
	}
	route := []int{from}
	for from != to {
		n, ok := r.next[from][to]
		if !ok {
			return nil, 0, false
		}
		from = n
		route = append(route, from)
	}
	return route, d, true
}

// Route is an ordered block path starting at the block a train occupies.
type Route struct {
	Blocks []ID
	Length float64 // metres beyond the first block
}

// RouteToStation returns the shortest route from a block to the nearest block
// serving the named station on the same line.
func (t *Topology) RouteToStation(from ID, station string) (Route, error) {
	ln, b, err := t.block(from)
	if err != nil {
		return Route{}, err
	}
	st, ok := ln.stations[station]
	if !ok {
		return Route{}, fmt.Errorf("track: station %s/%s: %w", from.Line, station, ErrUnknownBlock)
	}

	var (
		best    []int
		bestLen = math.Inf(1)
	)
	for _, target := range st.Blocks {
		p, d, ok := ln.router.path(b.ID.Number, target)
		if ok && d < bestLen {
			best, bestLen = p, d
		}
	}
	if best == nil {
		return Route{}, fmt.Errorf("track: %s to station %q: %w", from, station, ErrNoRoute)
	}

	r := Route{Blocks: make([]ID, len(best)), Length: bestLen}
	for i, n := range best {
		r.Blocks[i] = ln.blocks[n].ID
	}
	return r, nil
}

// AtStation reports whether a block serves the named station.
func (t *Topology) AtStation(id ID, station string) bool {
	_, b, err := t.block(id)
	return err == nil && station != "" && b.Station == station
}
