package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a capsule does not exist.
var ErrNotFound = errors.New("capsule not found")

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SaveCapsule inserts a capsule, or updates the payload and metadata of
// an existing capsule with the same name.
func (s *SQLiteStore) SaveCapsule(ctx context.Context, c *Capsule) error {
	query := `
		INSERT INTO capsules (id, name, type_name, mode, payload, size, warnings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type_name = excluded.type_name,
			mode = excluded.mode,
			payload = excluded.payload,
			size = excluded.size,
			warnings = excluded.warnings,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.TypeName,
		c.Mode,
		c.Payload,
		c.Size,
		c.Warnings,
		c.CreatedAt,
		c.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save capsule: %w", err)
	}

	return nil
}

// GetCapsule retrieves a capsule by ID
func (s *SQLiteStore) GetCapsule(ctx context.Context, id string) (*Capsule, error) {
	query := `
		SELECT id, name, type_name, mode, payload, size, warnings, created_at, updated_at, pushed_at
		FROM capsules
		WHERE id = ?
	`

	return s.scanCapsule(s.db.QueryRowContext(ctx, query, id), id)
}

// GetCapsuleByName retrieves a capsule by its unique name
func (s *SQLiteStore) GetCapsuleByName(ctx context.Context, name string) (*Capsule, error) {
	query := `
		SELECT id, name, type_name, mode, payload, size, warnings, created_at, updated_at, pushed_at
		FROM capsules
		WHERE name = ?
	`

	return s.scanCapsule(s.db.QueryRowContext(ctx, query, name), name)
}

func (s *SQLiteStore) scanCapsule(row *sql.Row, key string) (*Capsule, error) {
	c := &Capsule{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.TypeName,
		&c.Mode,
		&c.Payload,
		&c.Size,
		&c.Warnings,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.PushedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capsule: %w", err)
	}

	return c, nil
}

// ListCapsules lists capsules with pagination, newest first. Payload
// bytes are not loaded; fetch individual capsules for those.
func (s *SQLiteStore) ListCapsules(ctx context.Context, limit, offset int) ([]*Capsule, error) {
	query := `
		SELECT id, name, type_name, mode, size, warnings, created_at, updated_at, pushed_at
		FROM capsules
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list capsules: %w", err)
	}
	defer rows.Close()

	capsules := []*Capsule{}
	for rows.Next() {
		c := &Capsule{}
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.TypeName,
			&c.Mode,
			&c.Size,
			&c.Warnings,
			&c.CreatedAt,
			&c.UpdatedAt,
			&c.PushedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capsule: %w", err)
		}
		capsules = append(capsules, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating capsules: %w", err)
	}

	return capsules, nil
}

// DeleteCapsule deletes a capsule by ID
func (s *SQLiteStore) DeleteCapsule(ctx context.Context, id string) error {
	query := `DELETE FROM capsules WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete capsule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// CountCapsules returns the number of stored capsules
func (s *SQLiteStore) CountCapsules(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM capsules`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count capsules: %w", err)
	}
	return count, nil
}

// MarkPushed records the time a capsule was shipped to a remote host
func (s *SQLiteStore) MarkPushed(ctx context.Context, id string) error {
	query := `UPDATE capsules SET pushed_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark capsule pushed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// AppendAudit appends a new audit entry
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, capsule_id, details, timestamp)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.CapsuleID,
		entry.Details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAudit lists audit entries with an optional capsule filter and
// pagination
func (s *SQLiteStore) ListAudit(ctx context.Context, capsuleID *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, capsule_id, details, timestamp
		FROM audit
		WHERE (? IS NULL OR capsule_id = ?)
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, capsuleID, capsuleID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.CapsuleID,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
