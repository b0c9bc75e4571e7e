package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kaiwa-app/kaiwa/internal/db/models"
)

// Open initializes the SQLite database connection, runs migrations and seeds
// the reference data (plans, models, plan grants).
func Open(dbPath string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	if err := database.AutoMigrate(
		&models.Plan{},
		&models.Model{},
		&models.PlanModel{},
		&models.User{},
		&models.ChatSession{},
		&models.ChatMessage{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := Seed(database); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	return database, nil
}
