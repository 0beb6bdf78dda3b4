// Package kinematics holds the braking model used to bound suggested speed
// by stopping distance.
package kinematics

import "math"

// DefaultServiceBrake is the service braking deceleration in m/s² used when a
// train or line does not specify one.
const DefaultServiceBrake = 1.2

// BrakingModel is the physics contract the authority engine depends on.
// Distances are metres, velocities m/s.
type BrakingModel interface {
	// BrakingDistance returns the minimum distance needed to stop from v.
	BrakingDistance(v float64) float64

	// MaxSpeedWithin returns the highest speed from which the vehicle can stop
	// within dist.
	MaxSpeedWithin(dist float64) float64
}

// ConstantDeceleration brakes at a fixed rate.
type ConstantDeceleration struct {
	ADcc float64 `json:"a_dcc" yaml:"a_dcc"` // service braking deceleration, m/s² (positive)
}

// BrakingDistance returns v²/2a. A model without braking never stops.
func (c ConstantDeceleration) BrakingDistance(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if c.ADcc <= 0 {
		return math.Inf(1)
	}
	return (v * v) / (2 * c.ADcc)
}

// MaxSpeedWithin returns sqrt(2·a·dist), or 0 when no distance is available.
func (c ConstantDeceleration) MaxSpeedWithin(dist float64) float64 {
	if dist <= 0 || c.ADcc <= 0 {
		return 0
	}
	return math.Sqrt(2 * c.ADcc * dist)
}
