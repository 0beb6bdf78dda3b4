// Package models defines the GORM tables that persist controller state
// across restarts. Static layout is never stored; it always comes from
// configuration.
package models

import "time"

// BlockState is the mutable state of one block.
type BlockState struct {
	Line      string `gorm:"primaryKey;size:64"`
	Number    int    `gorm:"primaryKey;autoIncrement:false"`
	Section   string `gorm:"size:16"`
	Occupied  bool
	Failure   string `gorm:"size:16;default:none"`
	Status    string `gorm:"size:16;default:open"`
	UpdatedAt time.Time
}

// SwitchState is the position and lock of one switch.
type SwitchState struct {
	Line      string `gorm:"primaryKey;size:64"`
	Number    int    `gorm:"primaryKey;autoIncrement:false"`
	Section   string `gorm:"size:16"`
	Position  string `gorm:"size:8;default:normal"`
	Locked    bool
	UpdatedAt time.Time
}

// GateState is the last known status of one crossing gate.
type GateState struct {
	Line      string `gorm:"primaryKey;size:64"`
	Number    int    `gorm:"primaryKey;autoIncrement:false"`
	Section   string `gorm:"size:16"`
	Status    string `gorm:"size:8;default:up"`
	UpdatedAt time.Time
}

// StationCount holds cumulative passenger counts for a station.
type StationCount struct {
	Line      string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"primaryKey;size:64"`
	Entering  int
	Leaving   int
	UpdatedAt time.Time
}
