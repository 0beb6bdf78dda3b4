package db

import (
	"fmt"

	"github.com/zulandar/ctc/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every persisted GORM model.
func AllModels() []interface{} {
	return []interface{}{
		&models.BlockState{},
		&models.SwitchState{},
		&models.GateState{},
		&models.StationCount{},
		&models.Train{},
		&models.IssuedTrainID{},
		&models.ScheduledTrain{},
		&models.ControllerState{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
