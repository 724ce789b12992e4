package sqlite

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/xdauth/internal/vault/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations brings the schema up to date from the migrations embedded
// in the binary. Running it on a current schema is a no-op.
func (s *Store) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
