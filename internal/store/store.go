// Package store opens the configured database and brings its schema up to date.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"meridian/internal/config"
	"meridian/internal/persistence"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "meridian.db"

// Open connects to Postgres or SQLite according to cfg and applies pending
// migrations.
func Open(ctx context.Context, cfg config.Database) (*persistence.SQLDB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := persistence.NewMigrationManager(db).Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Connect opens the database without touching the schema.
func Connect(cfg config.Database) (*persistence.SQLDB, error) {
	switch cfg.Driver {
	case persistence.DialectPostgres:
		return persistence.NewPostgresDB(cfg.ConnectionString)
	case persistence.DialectSQLite, "":
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = ".meridian"
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return persistence.NewSQLiteDB(filepath.Join(dataDir, DatabaseFile))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
