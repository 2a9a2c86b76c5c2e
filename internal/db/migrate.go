package db

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Participant{},
		&models.ChatSession{},
		&models.ChatMessage{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropTables removes every Switchboard table, sessions and messages included.
func DropTables(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}

// SeedParticipants upserts Participant rows from configuration.
func SeedParticipants(db *gorm.DB, participants []config.ParticipantConfig) error {
	for _, pc := range participants {
		p := models.Participant{
			ID:          pc.ID,
			DisplayName: pc.DisplayName,
			Role:        pc.Role,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "role"}),
		}).Create(&p)
		if result.Error != nil {
			return fmt.Errorf("db: seed participant %q: %w", pc.ID, result.Error)
		}
	}
	return nil
}
