package db

import (
	"fmt"

	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model managed by the engine.
func AllModels() []interface{} {
	return []interface{}{
		&models.Plan{},
		&models.Task{},
		&models.TaskDep{},
		&models.DigestRun{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// DropAll drops every engine table. Used by `db reset` on sqlite, where there
// is no server-side database to drop.
func DropAll(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return nil
}
