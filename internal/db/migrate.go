package db

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/models"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Build{},
		&models.Classification{},
		&models.RetryAttempt{},
		&models.WatchedRepo{},
		&models.CommitFix{},
		&models.NotificationLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedWatchedRepos upserts WatchedRepo rows from configuration without
// touching their scan state.
func SeedWatchedRepos(db *gorm.DB, cfg config.WatchConfig) error {
	for _, name := range cfg.Repos {
		repo := models.WatchedRepo{Name: name}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&repo)
		if result.Error != nil {
			return fmt.Errorf("db: seed watched repo %q: %w", name, result.Error)
		}
	}
	return nil
}
