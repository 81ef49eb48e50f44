package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLDB implements Database on top of database/sql. Queries are built with
// squirrel so the same repositories run on Postgres and SQLite; only the
// placeholder format and the migration set differ.
type SQLDB struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
	now     func() time.Time

	newsItems NewsItemRepository
	digests   DigestRepository
	sources   SourceRepository
	settings  SettingsRepository
	sendLogs  SendLogRepository
	subs      SubscriberRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*SQLDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLDB(db, DialectPostgres), nil
}

// NewSQLiteDB opens (creating if needed) a SQLite database file.
func NewSQLiteDB(path string) (*SQLDB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newSQLDB(db, DialectSQLite), nil
}

func newSQLDB(db *sql.DB, dialect string) *SQLDB {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == DialectPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	s := &SQLDB{
		db:      db,
		dialect: dialect,
		sb:      sb,
		now:     func() time.Time { return time.Now().UTC() },
	}
	base := repoBase{db: db, sb: sb, now: s.clock}
	s.newsItems = &newsItemRepo{base}
	s.digests = &digestRepo{base}
	s.sources = &sourceRepo{base}
	s.settings = &settingsRepo{base}
	s.sendLogs = &sendLogRepo{base}
	s.subs = &subscriberRepo{base}
	return s
}

// SetClock overrides the time source used for row timestamps.
func (s *SQLDB) SetClock(now func() time.Time) {
	if now != nil {
		s.now = func() time.Time { return now().UTC() }
	}
}

func (s *SQLDB) clock() time.Time { return s.now() }

func (s *SQLDB) NewsItems() NewsItemRepository     { return s.newsItems }
func (s *SQLDB) Digests() DigestRepository         { return s.digests }
func (s *SQLDB) Sources() SourceRepository         { return s.sources }
func (s *SQLDB) Settings() SettingsRepository      { return s.settings }
func (s *SQLDB) SendLogs() SendLogRepository       { return s.sendLogs }
func (s *SQLDB) Subscribers() SubscriberRepository { return s.subs }
func (s *SQLDB) Dialect() string                   { return s.dialect }

func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

// repoBase is shared by all repositories.
type repoBase struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

func (r repoBase) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r repoBase) queryRows(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.db.QueryContext(ctx, query, args...)
}

func (r repoBase) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.db.QueryRowContext(ctx, query, args...), nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
