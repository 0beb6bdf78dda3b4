// Package clock provides the simulation time source for the CTC controller.
//
// A Clock is an owned value: the controller creates one and passes it to the
// components that need "now". It is never a package-level singleton.
package clock

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultStep is the simulated time added per Advance at speed 1.
const DefaultStep = time.Second

// ErrInvalidState is returned when an operation is not allowed in the
// clock's current running state.
var ErrInvalidState = errors.New("invalid clock state")

// Time is a snapshot of the clock.
type Time struct {
	Now     time.Time `json:"now"`
	Speed   float64   `json:"speed"`
	Running bool      `json:"running"`
}

// Clock is a pausable simulation clock with an adjustable rate.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	step    time.Duration
	speed   float64
	running bool
}

// New returns a stopped clock at start. A non-positive step falls back to
// DefaultStep.
func New(start time.Time, step time.Duration) *Clock {
	if step <= 0 {
		step = DefaultStep
	}
	return &Clock{now: start, step: step, speed: 1}
}

// Now returns a snapshot of the current simulation time.
func (c *Clock) Now() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Time{Now: c.now, Speed: c.speed, Running: c.running}
}

// Start sets the running flag.
func (c *Clock) Start() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
}

// Stop clears the running flag.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
}

// SetTime rebases simulation time. Only permitted while stopped.
func (c *Clock) SetTime(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("clock: set time while running: %w", ErrInvalidState)
	}
	c.now = t
	return nil
}

// SetSpeed changes the simulation speed multiplier.
func (c *Clock) SetSpeed(multiplier float64) error {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return fmt.Errorf("clock: speed %v must be positive and finite: %w", multiplier, ErrInvalidState)
	}
	c.mu.Lock()
	c.speed = multiplier
	c.mu.Unlock()
	return nil
}

// Advance adds speed × step to the current time. It is a no-op while stopped
// and reports whether time moved.
func (c *Clock) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.now = c.now.Add(time.Duration(float64(c.step) * c.speed))
	return true
}
