package db

import (
	"fmt"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Models lists every table owned by this service, in creation order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Consultant{},
		&models.Appointment{},
		&models.Review{},
		&models.Device{},
		&models.NotificationHistory{},
	}
}

// OverlapConstraint is the postgres exclusion constraint that makes two
// active appointments of one consultant with intersecting [start, end)
// windows impossible to commit.
const OverlapConstraint = "appointments_no_active_overlap"

var postgresStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + OverlapConstraint + `') THEN
		ALTER TABLE appointments ADD CONSTRAINT ` + OverlapConstraint + `
			EXCLUDE USING gist (
				consultant_id WITH =,
				tstzrange(start_time, end_time, '[)') WITH &&
			) WHERE (status IN ('pending', 'confirmed', 'in_session', 'blocked'));
	END IF;
END $$`,
}

// Migrate creates or updates the schema. On postgres it also installs the
// overlap exclusion constraint.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	for _, model := range Models() {
		name := fmt.Sprintf("%T", model)
		log.Info().Str("model", name).Msg("migrating table")
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %s table: %w", name, err)
		}
	}

	if db.Dialector.Name() != "postgres" {
		log.Info().Str("dialect", db.Dialector.Name()).Msg("skipping exclusion constraint")
		return nil
	}
	for _, stmt := range postgresStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("install overlap constraint: %w", err)
		}
	}
	log.Info().Str("constraint", OverlapConstraint).Msg("overlap constraint installed")
	return nil
}

// DropAll drops the given tables, or every service table when none are named.
func DropAll(db *gorm.DB, log zerolog.Logger, tables ...interface{}) error {
	if len(tables) == 0 {
		all := Models()
		for i := len(all) - 1; i >= 0; i-- {
			tables = append(tables, all[i])
		}
	}
	for _, table := range tables {
		if err := db.Migrator().DropTable(table); err != nil {
			log.Warn().Err(err).Str("table", fmt.Sprintf("%T", table)).Msg("drop table failed")
			continue
		}
		log.Info().Str("table", fmt.Sprintf("%T", table)).Msg("table dropped")
	}
	return nil
}

// TableByName resolves the names accepted by the clear-db command.
func TableByName(name string) (interface{}, bool) {
	switch name {
	case "User":
		return &models.User{}, true
	case "Consultant":
		return &models.Consultant{}, true
	case "Appointment":
		return &models.Appointment{}, true
	case "Review":
		return &models.Review{}, true
	case "Device":
		return &models.Device{}, true
	case "NotificationHistory":
		return &models.NotificationHistory{}, true
	}
	return nil, false
}
