package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/models"
	"github.com/zulandar/ctc/internal/schedule"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
	"gorm.io/gorm"
)

const controllerRow = 1

// Store persists controller state. It implements ctc.Persister.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore returns a store over an already migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

var _ ctc.Persister = (*Store)(nil)

// SaveState replaces everything stored with s in a single transaction.
func (s *Store) SaveState(ctx context.Context, st ctc.State) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range AllModels() {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		if err := createAll(tx, blockRows(st.Topology.Blocks)); err != nil {
			return err
		}
		if err := createAll(tx, switchRows(st.Topology.Switches)); err != nil {
			return err
		}
		if err := createAll(tx, gateRows(st.Topology.Gates)); err != nil {
			return err
		}
		if err := createAll(tx, stationRows(st.Topology.Stations)); err != nil {
			return err
		}
		if err := createAll(tx, trainRows(st.Trains.Trains)); err != nil {
			return err
		}
		if err := createAll(tx, issuedRows(st.Trains.Issued)); err != nil {
			return err
		}
		if err := createAll(tx, scheduleRows(st.Schedule)); err != nil {
			return err
		}
		return tx.Create(&models.ControllerState{
			ID:              controllerRow,
			Tick:            st.Tick,
			ClockTime:       st.Clock.Now,
			ClockSpeed:      st.Clock.Speed,
			ClockRunning:    st.Clock.Running,
			NextTrainID:     int(st.Trains.Next),
			Completed:       st.Throughput.Completed,
			ThroughputSince: st.Throughput.Since,
			SavedAt:         s.now(),
		}).Error
	})
	if err != nil {
		return fmt.Errorf("db: save state: %w", err)
	}
	return nil
}

// createAll inserts rows, skipping the call entirely for an empty slice.
func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert %T: %w", rows, err)
	}
	return nil
}

// LoadState reads the last saved state. The boolean is false when nothing
// has been saved yet.
func (s *Store) LoadState(ctx context.Context) (ctc.State, bool, error) {
	db := s.db.WithContext(ctx)

	var cs models.ControllerState
	if err := db.First(&cs, controllerRow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ctc.State{}, false, nil
		}
		return ctc.State{}, false, fmt.Errorf("db: load controller state: %w", err)
	}

	var (
		blocks   []models.BlockState
		switches []models.SwitchState
		gates    []models.GateState
		stations []models.StationCount
		ts       []models.Train
		issued   []models.IssuedTrainID
		sched    []models.ScheduledTrain
	)
	queries := []struct {
		name  string
		dest  interface{}
		order string
	}{
		{"blocks", &blocks, "line, number"},
		{"switches", &switches, "line, number"},
		{"gates", &gates, "line, number"},
		{"stations", &stations, "line, name"},
		{"trains", &ts, "id"},
		{"issued ids", &issued, "id"},
		{"schedule", &sched, "departure, id"},
	}
	for _, q := range queries {
		if err := db.Order(q.order).Find(q.dest).Error; err != nil {
			return ctc.State{}, false, fmt.Errorf("db: load %s: %w", q.name, err)
		}
	}

	st := ctc.State{
		Tick:       cs.Tick,
		Clock:      clock.Time{Now: cs.ClockTime, Speed: cs.ClockSpeed, Running: cs.ClockRunning},
		Throughput: ctc.Throughput{Completed: cs.Completed, Since: cs.ThroughputSince},
		Trains:     trains.State{Next: trains.ID(cs.NextTrainID)},
	}
	for _, b := range blocks {
		st.Topology.Blocks = append(st.Topology.Blocks, track.Block{
			ID:       track.ID{Line: b.Line, Section: b.Section, Number: b.Number},
			Occupied: b.Occupied,
			Failure:  track.Failure(b.Failure),
			Status:   track.BlockStatus(b.Status),
		})
	}
	for _, sw := range switches {
		st.Topology.Switches = append(st.Topology.Switches, track.Switch{
			ID:       track.ID{Line: sw.Line, Section: sw.Section, Number: sw.Number},
			Position: track.SwitchPosition(sw.Position),
			Locked:   sw.Locked,
		})
	}
	for _, g := range gates {
		st.Topology.Gates = append(st.Topology.Gates, track.Gate{
			ID:     track.ID{Line: g.Line, Section: g.Section, Number: g.Number},
			Status: track.GateStatus(g.Status),
		})
	}
	for _, sc := range stations {
		st.Topology.Stations = append(st.Topology.Stations, track.Station{
			ID:       track.StationID{Line: sc.Line, Name: sc.Name},
			Entering: sc.Entering,
			Leaving:  sc.Leaving,
		})
	}
	for _, t := range ts {
		st.Trains.Trains = append(st.Trains.Trains, trains.Train{
			ID:              trains.ID(t.ID),
			Line:            t.Line,
			Block:           track.ID{Line: t.BlockLine, Section: t.BlockSection, Number: t.BlockNumber},
			Speed:           t.Speed,
			Authority:       t.Authority,
			SuggestedSpeed:  t.SuggestedSpeed,
			Destination:     t.Destination,
			ExpectedArrival: deref(t.ExpectedArrival),
			Scheduled:       t.Scheduled,
			DispatchedAt:    deref(t.DispatchedAt),
		})
	}
	for _, id := range issued {
		st.Trains.Issued = append(st.Trains.Issued, trains.ID(id.ID))
	}
	for _, e := range sched {
		st.Schedule = append(st.Schedule, schedule.ScheduledTrain{
			ID:          trains.ID(e.ID),
			Line:        e.Line,
			Destination: e.Destination,
			Departure:   e.Departure,
			Arrival:     deref(e.Arrival),
			Service:     e.Service,
		})
	}
	return st, true, nil
}

func blockRows(in []track.Block) []models.BlockState {
	out := make([]models.BlockState, 0, len(in))
	for _, b := range in {
		out = append(out, models.BlockState{
			Line:     b.ID.Line,
			Number:   b.ID.Number,
			Section:  b.ID.Section,
			Occupied: b.Occupied,
			Failure:  string(b.Failure),
			Status:   string(b.Status),
		})
	}
	return out
}

func switchRows(in []track.Switch) []models.SwitchState {
	out := make([]models.SwitchState, 0, len(in))
	for _, sw := range in {
		out = append(out, models.SwitchState{
			Line:     sw.ID.Line,
			Number:   sw.ID.Number,
			Section:  sw.ID.Section,
			Position: string(sw.Position),
			Locked:   sw.Locked,
		})
	}
	return out
}

func gateRows(in []track.Gate) []models.GateState {
	out := make([]models.GateState, 0, len(in))
	for _, g := range in {
		out = append(out, models.GateState{
			Line:    g.ID.Line,
			Number:  g.ID.Number,
			Section: g.ID.Section,
			Status:  string(g.Status),
		})
	}
	return out
}

func stationRows(in []track.Station) []models.StationCount {
	out := make([]models.StationCount, 0, len(in))
	for _, st := range in {
		out = append(out, models.StationCount{
			Line:     st.ID.Line,
			Name:     st.ID.Name,
			Entering: st.Entering,
			Leaving:  st.Leaving,
		})
	}
	return out
}

func trainRows(in []trains.Train) []models.Train {
	out := make([]models.Train, 0, len(in))
	for _, t := range in {
		out = append(out, models.Train{
			ID:              int(t.ID),
			Line:            t.Line,
			BlockLine:       t.Block.Line,
			BlockSection:    t.Block.Section,
			BlockNumber:     t.Block.Number,
			Speed:           t.Speed,
			Authority:       t.Authority,
			SuggestedSpeed:  t.SuggestedSpeed,
			Destination:     t.Destination,
			ExpectedArrival: ref(t.ExpectedArrival),
			Scheduled:       t.Scheduled,
			DispatchedAt:    ref(t.DispatchedAt),
		})
	}
	return out
}

func issuedRows(in []trains.ID) []models.IssuedTrainID {
	out := make([]models.IssuedTrainID, 0, len(in))
	for _, id := range in {
		out = append(out, models.IssuedTrainID{ID: int(id)})
	}
	return out
}

func scheduleRows(in []schedule.ScheduledTrain) []models.ScheduledTrain {
	out := make([]models.ScheduledTrain, 0, len(in))
	for _, e := range in {
		out = append(out, models.ScheduledTrain{
			ID:          int(e.ID),
			Line:        e.Line,
			Destination: e.Destination,
			Departure:   e.Departure,
			Arrival:     ref(e.Arrival),
			Service:     e.Service,
		})
	}
	return out
}

// ref maps the zero time to NULL.
func ref(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
