package clock

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)

func TestNew_Defaults(t *testing.T) {
	c := New(t0, 0)
	now := c.Now()
	if !now.Now.Equal(t0) {
		t.Errorf("Now = %v, want %v", now.Now, t0)
	}
	if now.Speed != 1 {
		t.Errorf("Speed = %v, want 1", now.Speed)
	}
	if now.Running {
		t.Error("new clock should be stopped")
	}
	if c.step != DefaultStep {
		t.Errorf("step = %v, want %v", c.step, DefaultStep)
	}
}

func TestAdvance_StoppedIsNoop(t *testing.T) {
	c := New(t0, time.Second)
	if c.Advance() {
		t.Error("Advance on stopped clock reported movement")
	}
	if !c.Now().Now.Equal(t0) {
		t.Errorf("time moved while stopped: %v", c.Now().Now)
	}
}

func TestAdvance_UsesSpeed(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		ticks int
		want  time.Duration
	}{
		{"real time", 1, 3, 3 * time.Second},
		{"double", 2, 3, 6 * time.Second},
		{"half", 0.5, 4, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(t0, time.Second)
			if err := c.SetSpeed(tt.speed); err != nil {
				t.Fatalf("SetSpeed: %v", err)
			}
			c.Start()
			for i := 0; i < tt.ticks; i++ {
				c.Advance()
			}
			if got := c.Now().Now.Sub(t0); got != tt.want {
				t.Errorf("elapsed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetTime_WhileRunning(t *testing.T) {
	c := New(t0, time.Second)
	c.Start()
	err := c.SetTime(t0.Add(time.Hour))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("SetTime while running: err = %v, want ErrInvalidState", err)
	}
	if !c.Now().Now.Equal(t0) {
		t.Error("time changed despite error")
	}
}

func TestSetTime_WhileStopped(t *testing.T) {
	c := New(t0, time.Second)
	c.Start()
	c.Stop()
	want := t0.Add(90 * time.Minute)
	if err := c.SetTime(want); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if !c.Now().Now.Equal(want) {
		t.Errorf("Now = %v, want %v", c.Now().Now, want)
	}
}

func TestSetSpeed_RejectsInvalid(t *testing.T) {
	c := New(t0, time.Second)
	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := c.SetSpeed(v); !errors.Is(err, ErrInvalidState) {
			t.Errorf("SetSpeed(%v) err = %v, want ErrInvalidState", v, err)
		}
	}
	if c.Now().Speed != 1 {
		t.Errorf("Speed = %v, want unchanged 1", c.Now().Speed)
	}
}
