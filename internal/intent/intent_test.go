package intent

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/zulandar/ctc/internal/track"
)

func occupancy(n int) Intent {
	return Intent{
		Kind:     BlockOccupancy,
		Source:   "wayside-green",
		Target:   track.ID{Line: "Green", Section: "A", Number: n},
		Occupied: true,
	}
}

func TestSubmit_AssignsIDAndTime(t *testing.T) {
	q := NewQueue(4)
	in, err := q.Submit(occupancy(3))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := uuid.Parse(in.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", in.ID, err)
	}
	if in.Submitted.IsZero() {
		t.Error("Submitted not set")
	}
	if _, err := q.Submit(Intent{}); err == nil {
		t.Error("expected error for missing kind")
	}
}

func TestSubmit_QueueFull(t *testing.T) {
	q := NewQueue(2)
	q.Submit(occupancy(1))
	q.Submit(occupancy(2))
	if _, err := q.Submit(occupancy(3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	q.Drain()
	if _, err := q.Submit(occupancy(3)); err != nil {
		t.Errorf("Submit after drain: %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	q := NewQueue(8)
	a, _ := q.Submit(occupancy(1))
	b, _ := q.Submit(occupancy(2))
	c, _ := q.Submit(occupancy(3))

	got, err := q.Withdraw(b.ID)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got.Target.Number != 2 {
		t.Errorf("withdrew %+v", got)
	}
	if _, err := q.Withdraw(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Withdraw err = %v, want ErrNotFound", err)
	}

	drained := q.Drain()
	if len(drained) != 2 || drained[0].ID != a.ID || drained[1].ID != c.ID {
		t.Fatalf("Drain = %+v, want a then c", drained)
	}
	// Committed once drained.
	if _, err := q.Withdraw(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Withdraw after drain err = %v, want ErrNotFound", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after drain", q.Len())
	}
}

func TestDrain_ConcurrentSubmit(t *testing.T) {
	q := NewQueue(10000)
	const producers, each = 8, 200

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		seen  = make(map[string]bool)
		total int
	)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				return
			default:
			}
			batch := q.Drain()
			mu.Lock()
			for _, in := range batch {
				if seen[in.ID] {
					t.Errorf("intent %s drained twice", in.ID)
				}
				seen[in.ID] = true
			}
			total += len(batch)
			mu.Unlock()
		}
	}()
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, err := q.Submit(occupancy(i)); err != nil {
					t.Errorf("Submit: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	close(done)
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	total += len(q.Drain())
	if total != producers*each {
		t.Errorf("drained %d intents, want %d", total, producers*each)
	}
}

func TestSplit_PreservesOrderWithinPhase(t *testing.T) {
	in := []Intent{
		{ID: "1", Kind: Dispatch},
		{ID: "2", Kind: BlockOccupancy},
		{ID: "3", Kind: Telemetry},
		{ID: "4", Kind: BlockStatus},
		{ID: "5", Kind: GateStatus},
	}
	topo, tel, op := Split(in)
	if len(topo) != 2 || topo[0].ID != "2" || topo[1].ID != "5" {
		t.Errorf("topology = %+v", topo)
	}
	if len(tel) != 1 || tel[0].ID != "3" {
		t.Errorf("telemetry = %+v", tel)
	}
	if len(op) != 2 || op[0].ID != "1" || op[1].ID != "4" {
		t.Errorf("operator = %+v", op)
	}
}
