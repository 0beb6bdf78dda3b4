package models

import "time"

// ControllerState is the single row of clock and counter state.
type ControllerState struct {
	ID              uint `gorm:"primaryKey"`
	Tick            uint64
	ClockTime       time.Time
	ClockSpeed      float64
	ClockRunning    bool
	NextTrainID     int
	Completed       int
	ThroughputSince time.Time
	SavedAt         time.Time
}
