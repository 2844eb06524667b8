package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"shopbot/internal/storage"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// DB is the SQLite implementation of storage.Backend. All collections
// share one records table keyed by (collection, record_key); counters
// live in their own table.
type DB struct {
	db *sql.DB
}

// Open opens (and creates if needed) the SQLite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// modernc sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY between the flush and ad-hoc writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &DB{db: db}, nil
}

// Initialize creates the schema idempotently via embedded migrations.
func (d *DB) Initialize(ctx context.Context) error {
	if err := Migrate(ctx, d.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Migrate applies all embedded migrations to the given database.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// LoadRows returns every row of the collection in stored order.
func (d *DB) LoadRows(ctx context.Context, collection string) ([]storage.Row, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT record_key, data FROM records WHERE collection = ? ORDER BY position, record_key`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collection, err)
	}
	defer rows.Close()

	var out []storage.Row
	for rows.Next() {
		var r storage.Row
		var data string
		if err := rows.Scan(&r.Key, &data); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", collection, err)
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", collection, err)
	}
	return out, nil
}

// UpsertRows writes rows with last-writer-wins semantics in one transaction.
func (d *DB) UpsertRows(ctx context.Context, collection string, rows []storage.Row) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert of %s: %w", collection, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (collection, record_key, position, data) VALUES (?, ?, 0, ?)
		 ON CONFLICT (collection, record_key) DO UPDATE SET data = excluded.data`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert of %s: %w", collection, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, collection, r.Key, string(r.Data)); err != nil {
			return fmt.Errorf("failed to upsert key %s of %s: %w", r.Key, collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert of %s: %w", collection, err)
	}
	return nil
}

// ReplaceRows replaces the full collection contents in one transaction.
func (d *DB) ReplaceRows(ctx context.Context, collection string, rows []storage.Row) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace of %s: %w", collection, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, collection); err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", collection, err)
	}
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (collection, record_key, position, data) VALUES (?, ?, ?, ?)`,
			collection, r.Key, i, string(r.Data)); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", collection, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace of %s: %w", collection, err)
	}
	return nil
}

// LoadCounter returns the named counter, or def if it was never saved.
func (d *DB) LoadCounter(ctx context.Context, name string, def int64) (int64, error) {
	var value int64
	err := d.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load counter %s: %w", name, err)
	}
	return value, nil
}

// SaveCounter upserts the named counter.
func (d *DB) SaveCounter(ctx context.Context, name string, value int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to save counter %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
