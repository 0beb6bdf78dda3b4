package models

import "time"

// Train is an active train. The block columns record the last reported
// position, which may name a block the layout no longer has.
type Train struct {
	ID              int    `gorm:"primaryKey;autoIncrement:false"`
	Line            string `gorm:"size:64;index"`
	BlockLine       string `gorm:"size:64"`
	BlockSection    string `gorm:"size:16"`
	BlockNumber     int
	Speed           float64
	Authority       float64
	SuggestedSpeed  float64
	Destination     string `gorm:"size:64"`
	ExpectedArrival *time.Time
	Scheduled       bool
	DispatchedAt    *time.Time
}

// IssuedTrainID records an id handed out by the registry so it is never
// reused after a restart.
type IssuedTrainID struct {
	ID int `gorm:"primaryKey;autoIncrement:false"`
}

// ScheduledTrain is a pending departure.
type ScheduledTrain struct {
	ID          int       `gorm:"primaryKey;autoIncrement:false"`
	Line        string    `gorm:"size:64;index"`
	Destination string    `gorm:"size:64"`
	Departure   time.Time `gorm:"index"`
	Arrival     *time.Time
	Service     string `gorm:"size:64"`
}
