package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeMealTypes = "2026-06-14_normalize_meal_types"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeMealTypes, apply: normalizeMealTypes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before meal types were normalized at ingestion may carry
// mixed-case values; classification is case-insensitive either way, but
// the note upsert keys on the stored string.
func normalizeMealTypes(db *gorm.DB) error {
	if err := db.Exec("UPDATE diary_entries SET meal_type = lower(trim(meal_type)) WHERE meal_type <> lower(trim(meal_type));").Error; err != nil {
		return err
	}
	return db.Exec("UPDATE mealtype_meta SET meal_type = lower(trim(meal_type)) WHERE meal_type <> lower(trim(meal_type));").Error
}
