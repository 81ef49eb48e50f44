package persistence

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"meridian/internal/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db  *SQLDB
	log *zerolog.Logger
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *SQLDB) *MigrationManager {
	return &MigrationManager{
		db:  db,
		log: logger.Get(),
	}
}

// Migrate applies every embedded migration newer than the recorded schema
// version, each in its own transaction.
func (m *MigrationManager) Migrate(ctx context.Context) error {
	m.log.Debug().Str("dialect", m.db.dialect).Msg("Checking schema version")

	plan, err := m.plan(ctx)
	if err != nil {
		return err
	}

	var pending []Migration
	for _, step := range plan {
		if !step.applied {
			pending = append(pending, step.Migration)
		}
	}
	if len(pending) == 0 {
		m.log.Debug().Msg("Schema is up to date")
		return nil
	}

	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migration %03d (%s): %w", mig.Version, mig.Description, err)
		}
	}

	m.log.Info().Int("applied", len(pending)).Str("dialect", m.db.dialect).Msg("Schema migrated")
	return nil
}

// Status reports every embedded migration and whether it has been applied
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	plan, err := m.plan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(plan))
	for _, step := range plan {
		out = append(out, MigrationStatus{
			Version:     step.Version,
			Description: step.Description,
			Applied:     step.applied,
		})
	}
	return out, nil
}

type planStep struct {
	Migration
	applied bool
}

// plan pairs the embedded migrations with the versions recorded in
// schema_migrations, ordered by version.
func (m *MigrationManager) plan(ctx context.Context) ([]planStep, error) {
	if _, err := m.db.db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	embedded, err := m.loadMigrations()
	if err != nil {
		return nil, err
	}

	steps := make([]planStep, 0, len(embedded))
	for _, mig := range embedded {
		steps = append(steps, planStep{Migration: mig, applied: done[mig.Version]})
	}
	return steps, nil
}

const schemaMigrationsDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INT PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func (m *MigrationManager) appliedVersions(ctx context.Context) (map[int]bool, error) {
	query, args, err := m.db.sb.Select("version").From("schema_migrations").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := m.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// parseMigrationName splits "002_send_logs.sql" into 2 and "send logs"
func parseMigrationName(name string) (int, string, bool) {
	prefix, rest, found := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
	if !found {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, strings.ReplaceAll(rest, "_", " "), true
}

// loadMigrations reads the current dialect's embedded migrations
func (m *MigrationManager) loadMigrations() ([]Migration, error) {
	dir := path.Join("migrations", m.db.dialect)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", m.db.dialect, err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		version, desc, ok := parseMigrationName(entry.Name())
		if !ok {
			m.log.Warn().Str("file", entry.Name()).Msg("Ignoring migration with unexpected name")
			continue
		}
		body, err := fs.ReadFile(migrationFiles, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Description: desc, SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *MigrationManager) apply(ctx context.Context, mig Migration) error {
	m.log.Info().Int("version", mig.Version).Str("description", mig.Description).Msg("Applying migration")

	tx, err := m.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}

	query, args, err := m.db.sb.Insert("schema_migrations").
		Columns("version", "description").
		Values(mig.Version, mig.Description).
		Suffix("ON CONFLICT (version) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

// Rollback forgets the last applied migration. Schema changes are not reverted.
func (m *MigrationManager) Rollback(ctx context.Context) (int, error) {
	query, args, err := m.db.sb.Select("COALESCE(MAX(version), 0)").From("schema_migrations").ToSql()
	if err != nil {
		return 0, err
	}
	var last int
	if err := m.db.db.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if last == 0 {
		return 0, fmt.Errorf("no migrations to roll back")
	}

	query, args, err = m.db.sb.Delete("schema_migrations").Where(sq.Eq{"version": last}).ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := m.db.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("forget migration %d: %w", last, err)
	}

	m.log.Warn().Int("version", last).Msg("Migration record removed; revert schema changes manually")
	return last, nil
}
