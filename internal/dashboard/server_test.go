package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/ctc/internal/clock"
	"github.com/zulandar/ctc/internal/config"
	"github.com/zulandar/ctc/internal/ctc"
	"github.com/zulandar/ctc/internal/dispatch"
	"github.com/zulandar/ctc/internal/intent"
	"github.com/zulandar/ctc/internal/track"
	"github.com/zulandar/ctc/internal/trains"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testController(t *testing.T) *ctc.Controller {
	t.Helper()
	cfg, err := config.Parse([]byte(config.Example))
	if err != nil {
		t.Fatalf("parse example config: %v", err)
	}
	ctl, err := ctc.New(cfg, ctc.Options{})
	if err != nil {
		t.Fatalf("ctc.New: %v", err)
	}
	return ctl
}

// do sends a request through the router and returns the recorder.
func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestStart_NilController(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil controller")
	}
	if !strings.Contains(err.Error(), "controller is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "controller is required")
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	var out strings.Builder
	ctl := testController(t)
	go func() {
		errCh <- Start(ctx, StartOpts{Controller: ctl, Port: 18080 + int(time.Now().UnixNano()%1000), Out: &out})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if !strings.Contains(out.String(), "Operator API listening") {
		t.Errorf("output = %q", out.String())
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", track.ErrUnknownBlock), http.StatusNotFound},
		{fmt.Errorf("x: %w", trains.ErrUnknownTrain), http.StatusNotFound},
		{intent.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("x: %w", dispatch.ErrInvalidRoute), http.StatusConflict},
		{dispatch.ErrOriginBusy, http.StatusConflict},
		{track.ErrSwitchBusy, http.StatusConflict},
		{track.ErrInvalidState, http.StatusConflict},
		{clock.ErrInvalidState, http.StatusConflict},
		{fmt.Errorf("x: %w", intent.ErrQueueFull), http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestQueries(t *testing.T) {
	router := newRouter(testController(t))
	tests := []struct {
		path string
		want int
	}{
		{"/api/snapshot", http.StatusOK},
		{"/api/lines", http.StatusOK},
		{"/api/lines/Green", http.StatusOK},
		{"/api/lines/Blue", http.StatusNotFound},
		{"/api/lines/Green/blocks/A/1", http.StatusOK},
		{"/api/lines/Green/blocks/A/99", http.StatusNotFound},
		{"/api/lines/Green/blocks/A/x", http.StatusBadRequest},
		{"/api/lines/Green/switches/B/1", http.StatusOK},
		{"/api/lines/Green/gates/B/1", http.StatusOK},
		{"/api/lines/Green/stations/Whited", http.StatusOK},
		{"/api/lines/Green/stations/Nowhere", http.StatusNotFound},
		{"/api/trains", http.StatusOK},
		{"/api/trains/1", http.StatusNotFound},
		{"/api/trains/zero", http.StatusBadRequest},
		{"/api/throughput", http.StatusOK},
		{"/api/intents", http.StatusOK},
		{"/api/clock", http.StatusOK},
		{"/no/such/route", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.path, "")
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d (%s)", tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestEmptyListsAreArrays(t *testing.T) {
	router := newRouter(testController(t))
	for _, path := range []string{"/api/trains", "/api/intents"} {
		w := do(t, router, http.MethodGet, path, "")
		if got := strings.TrimSpace(w.Body.String()); got != "[]" {
			t.Errorf("GET %s = %s, want []", path, got)
		}
	}
}

func TestWaysideReport_AppliedAtTick(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	w := do(t, router, http.MethodPost, "/api/wayside/wayside-green/occupancy",
		`{"line":"Green","section":"C","number":13,"occupied":true}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", w.Code, w.Body.String())
	}
	in := decode[intent.Intent](t, w)
	if in.ID == "" || in.Kind != intent.BlockOccupancy || in.Source != "wayside-green" {
		t.Errorf("intent = %+v", in)
	}

	// Not applied until the tick.
	w = do(t, router, http.MethodGet, "/api/lines/Green/blocks/C/13", "")
	if b := decode[track.Block](t, w); b.Occupied {
		t.Error("occupancy applied before tick")
	}
	ctl.Tick()
	w = do(t, router, http.MethodGet, "/api/lines/Green/blocks/C/13", "")
	if b := decode[track.Block](t, w); !b.Occupied {
		t.Error("occupancy not applied after tick")
	}
}

func TestWaysideReports_BadBodies(t *testing.T) {
	router := newRouter(testController(t))
	tests := []struct {
		name string
		path string
		body string
	}{
		{"occupancy missing flag", "/api/wayside/w/occupancy", `{"line":"Green","section":"A","number":1}`},
		{"occupancy zero number", "/api/wayside/w/occupancy", `{"line":"Green","section":"A","number":0,"occupied":true}`},
		{"failure missing kind", "/api/wayside/w/failure", `{"line":"Green","section":"A","number":1}`},
		{"switch missing position", "/api/wayside/w/switch", `{"line":"Green","section":"B","number":1}`},
		{"gate missing status", "/api/wayside/w/gate", `{"line":"Green","section":"B","number":1}`},
		{"station negative count", "/api/wayside/w/stations", `{"line":"Green","name":"Whited","entering":-1}`},
		{"not json", "/api/wayside/w/occupancy", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestWaysideReport_UnknownTargetIsNotFatal(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	// The push is accepted; the unknown block is rejected at the tick.
	w := do(t, router, http.MethodPost, "/api/wayside/wayside-green/failure",
		`{"line":"Green","section":"Z","number":99,"failure":"power"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	snap := ctl.Tick()
	if len(snap.Faults) == 0 || snap.Faults[0].Kind != ctc.FaultRejectedIntent {
		t.Errorf("Faults = %+v, want a rejected intent", snap.Faults)
	}
}

func TestDispatchAndTelemetry(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	w := do(t, router, http.MethodPost, "/api/dispatch", `{"line":"Green","destination":"Edgebrook"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("dispatch status = %d (%s)", w.Code, w.Body.String())
	}
	ctl.Tick()

	w = do(t, router, http.MethodGet, "/api/trains", "")
	ts := decode[[]trains.Train](t, w)
	if len(ts) != 1 {
		t.Fatalf("trains = %+v, want one", ts)
	}
	id := ts[0].ID

	path := fmt.Sprintf("/api/trains/%d/telemetry", id)
	w = do(t, router, http.MethodPost, path, `{"source":"train-link","line":"Green","section":"A","number":2,"speed":8.5}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("telemetry status = %d (%s)", w.Code, w.Body.String())
	}
	ctl.Tick()

	w = do(t, router, http.MethodGet, fmt.Sprintf("/api/trains/%d", id), "")
	tr := decode[trains.Train](t, w)
	if tr.Block != (track.ID{Line: "Green", Section: "A", Number: 2}) || tr.Speed != 8.5 {
		t.Errorf("train = %+v", tr)
	}

	w = do(t, router, http.MethodPost, path, `{"line":"Green","section":"A","number":3}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("telemetry without source = %d, want 400", w.Code)
	}
}

func TestDispatch_Errors(t *testing.T) {
	router := newRouter(testController(t))
	tests := []struct {
		body string
		want int
	}{
		{`{"line":"Red","destination":"Edgebrook"}`, http.StatusConflict},
		{`{"line":"Blue","destination":"Edgebrook"}`, http.StatusConflict},
		{`{"line":"Green"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodPost, "/api/dispatch", tt.body)
		if w.Code != tt.want {
			t.Errorf("POST /api/dispatch %s = %d, want %d", tt.body, w.Code, tt.want)
		}
	}
}

func TestRemoveTrain(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	if w := do(t, router, http.MethodDelete, "/api/trains/5", ""); w.Code != http.StatusNotFound {
		t.Errorf("remove unknown = %d, want 404", w.Code)
	}
	do(t, router, http.MethodPost, "/api/dispatch", `{"line":"Green","destination":"Whited"}`)
	ctl.Tick()
	id := ctl.Trains()[0].ID
	if w := do(t, router, http.MethodDelete, fmt.Sprintf("/api/trains/%d", id), ""); w.Code != http.StatusAccepted {
		t.Fatalf("remove = %d, want 202", w.Code)
	}
	ctl.Tick()
	if n := len(ctl.Trains()); n != 0 {
		t.Errorf("trains after removal = %d, want 0", n)
	}
}

func TestMaintenance(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	if w := do(t, router, http.MethodPost, "/api/maintenance/blocks/Green/A/3/close", ""); w.Code != http.StatusAccepted {
		t.Fatalf("close = %d (%s)", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/api/maintenance/blocks/Green/A/77/close", ""); w.Code != http.StatusNotFound {
		t.Errorf("close unknown = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/api/maintenance/switches/Green/B/1/throw", `{"position":"reverse"}`); w.Code != http.StatusAccepted {
		t.Fatalf("throw = %d (%s)", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodPost, "/api/maintenance/switches/Green/B/1/throw", `{"position":"sideways"}`); w.Code != http.StatusBadRequest {
		t.Errorf("throw to invalid position = %d, want 400", w.Code)
	}
	ctl.Tick()

	snap := ctl.Snapshot()
	b, _ := snap.Block(track.ID{Line: "Green", Section: "A", Number: 3})
	if b.Status != track.StatusClosed {
		t.Errorf("A/3 status = %s, want closed", b.Status)
	}
	sw, _ := snap.Switch(track.ID{Line: "Green", Section: "B", Number: 1})
	if sw.Position != track.PositionReverse {
		t.Errorf("switch position = %s, want reverse", sw.Position)
	}

	do(t, router, http.MethodPost, "/api/maintenance/switches/Green/B/1/lock", "")
	ctl.Tick()
	w := do(t, router, http.MethodPost, "/api/maintenance/switches/Green/B/1/throw", `{"position":"normal"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("throw locked switch = %d, want 409", w.Code)
	}
}

func TestWithdrawIntent(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	w := do(t, router, http.MethodPost, "/api/maintenance/blocks/Green/A/3/close", "")
	in := decode[intent.Intent](t, w)

	if w := do(t, router, http.MethodDelete, "/api/intents/"+in.ID, ""); w.Code != http.StatusOK {
		t.Fatalf("withdraw = %d (%s)", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodDelete, "/api/intents/"+in.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("second withdraw = %d, want 404", w.Code)
	}
}

func TestClockRoutes(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)

	target := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`{"time":%q}`, target.Format(time.RFC3339))
	if w := do(t, router, http.MethodPost, "/api/clock/time", body); w.Code != http.StatusConflict {
		t.Errorf("set time while running = %d, want 409", w.Code)
	}

	w := do(t, router, http.MethodPost, "/api/clock/stop", "")
	if ct := decode[clock.Time](t, w); ct.Running {
		t.Error("clock still running after stop")
	}
	w = do(t, router, http.MethodPost, "/api/clock/time", body)
	if ct := decode[clock.Time](t, w); !ct.Now.Equal(target) {
		t.Errorf("clock = %v, want %v", ct.Now, target)
	}
	if w := do(t, router, http.MethodPost, "/api/clock/time", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("set zero time = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/api/clock/speed", `{"speed":-2}`); w.Code != http.StatusConflict {
		t.Errorf("negative speed = %d, want 409", w.Code)
	}
	w = do(t, router, http.MethodPost, "/api/clock/speed", `{"speed":10}`)
	if ct := decode[clock.Time](t, w); ct.Speed != 10 {
		t.Errorf("speed = %v, want 10", ct.Speed)
	}
	w = do(t, router, http.MethodPost, "/api/clock/start", "")
	if ct := decode[clock.Time](t, w); !ct.Running {
		t.Error("clock not running after start")
	}
}

func TestThroughputReset(t *testing.T) {
	ctl := testController(t)
	router := newRouter(ctl)
	if w := do(t, router, http.MethodPost, "/api/throughput/reset", ""); w.Code != http.StatusNoContent {
		t.Errorf("reset = %d, want 204", w.Code)
	}
	ctl.Tick()
	w := do(t, router, http.MethodGet, "/api/throughput", "")
	if tp := decode[ctc.Throughput](t, w); tp.Completed != 0 {
		t.Errorf("completed = %d, want 0", tp.Completed)
	}
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	ctl := testController(t)
	srv := httptest.NewServer(newRouter(ctl))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := make(chan ctc.Snapshot, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		event := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: ") && event == "snapshot":
				var s ctc.Snapshot
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &s) == nil {
					events <- s
				}
			}
		}
		close(events)
	}()

	next := func() ctc.Snapshot {
		t.Helper()
		select {
		case s, ok := <-events:
			if !ok {
				t.Fatal("event stream closed")
			}
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for snapshot event")
		}
		return ctc.Snapshot{}
	}

	if s := next(); s.Tick != 0 {
		t.Errorf("first event tick = %d, want 0", s.Tick)
	}
	ctl.Tick()
	if s := next(); s.Tick != 1 {
		t.Errorf("second event tick = %d, want 1", s.Tick)
	}
}
