package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// migrationsFS holds one directory of goose SQL migrations per dialect.
// They are compiled into the binary, so a deployed server never depends on
// files next to it.
//
//go:embed migrations
var migrationsFS embed.FS

// Migrate applies every pending migration for the DB's dialect. It is
// idempotent: already-applied versions are skipped.
func (db *DB) Migrate(ctx context.Context) error {
	dir, err := fs.Sub(migrationsFS, db.dialect.migrations)
	if err != nil {
		return fmt.Errorf("sqlstore: locating %s migrations: %w", db.dialect.driver, err)
	}

	provider, err := goose.NewProvider(db.dialect.gooseDialect, db.conn, dir)
	if err != nil {
		return fmt.Errorf("sqlstore: preparing migrations: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}
