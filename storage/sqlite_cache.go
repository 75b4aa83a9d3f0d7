package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteIDCache is an incremental IDCache. Every Put is durable on its own,
// so Flush has nothing left to do.
type SQLiteIDCache struct {
	db *sql.DB
}

// OpenSQLiteIDCache opens (or creates) the database at path and applies
// pending migrations.
func OpenSQLiteIDCache(path string) (*SQLiteIDCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Entity: "channel_id", Err: err}
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Entity: "channel_id", Err: err}
	}

	return &SQLiteIDCache{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Get returns the cached identifier for reference.
func (c *SQLiteIDCache) Get(ctx context.Context, reference string) (string, bool, error) {
	var id string
	err := c.db.QueryRowContext(ctx,
		`SELECT channel_id FROM channel_ids WHERE reference = ?`, reference).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Op: "read", Entity: "channel_id", ID: reference, Err: err}
	}
	return id, true, nil
}

// Put upserts a mapping.
func (c *SQLiteIDCache) Put(ctx context.Context, reference, id string) error {
	if reference == "" || id == "" {
		return &StorageError{Op: "put", Entity: "channel_id", ID: reference, Err: ErrInvalidInput}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO channel_ids (reference, channel_id) VALUES (?, ?)
		 ON CONFLICT(reference) DO UPDATE SET channel_id = excluded.channel_id, resolved_at = CURRENT_TIMESTAMP`,
		reference, id)
	if err != nil {
		return &StorageError{Op: "put", Entity: "channel_id", ID: reference, Err: err}
	}
	return nil
}

// Flush is a no-op; writes are committed by Put.
func (c *SQLiteIDCache) Flush(ctx context.Context) error {
	return nil
}

// All returns every cached mapping.
func (c *SQLiteIDCache) All(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT reference, channel_id FROM channel_ids`)
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel_id", Err: err}
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ref, id string
		if err := rows.Scan(&ref, &id); err != nil {
			return nil, &StorageError{Op: "read", Entity: "channel_id", Err: err}
		}
		out[ref] = id
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Entity: "channel_id", Err: err}
	}
	return out, nil
}

// Close closes the database.
func (c *SQLiteIDCache) Close() error {
	return c.db.Close()
}
