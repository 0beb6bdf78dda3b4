package trains

import "sort"

// State is everything needed to resume the registry after a restart.
type State struct {
	Trains []Train
	Issued []ID
	Next   ID
}

// State exports the registry.
func (r *Registry) State() State {
	s := State{Trains: r.List(), Next: r.next}
	for id := range r.issued {
		s.Issued = append(s.Issued, id)
	}
	sort.Slice(s.Issued, func(i, j int) bool { return s.Issued[i] < s.Issued[j] })
	return s
}

// Restore replaces the registry's contents. Reservations are kept. Every
// restored train is marked moved so its authority is recomputed.
func (r *Registry) Restore(s State) {
	r.trains = make(map[ID]*Train, len(s.Trains))
	r.issued = make(map[ID]bool, len(s.Issued))
	r.moved = make(map[ID]bool, len(s.Trains))
	r.next = 1
	if s.Next > r.next {
		r.next = s.Next
	}
	for _, id := range s.Issued {
		r.issued[id] = true
		delete(r.reserved, id)
	}
	for i := range s.Trains {
		t := s.Trains[i]
		r.trains[t.ID] = &t
		r.issued[t.ID] = true
		delete(r.reserved, t.ID)
		r.moved[t.ID] = true
		if t.ID >= r.next {
			r.next = t.ID + 1
		}
	}
}
