package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteSlots keeps named slots in the slots table of a SQLite database.
type SQLiteSlots struct {
	db     *sql.DB
	schema SchemaStatus
}

// NewSQLiteSlots opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewSQLiteSlots(dbPath string) (*SQLiteSlots, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", dbPath, err)
	}

	schema, err := RunMigrations(dbPath)
	if err != nil {
		return nil, err
	}
	if schema.Dirty {
		return nil, fmt.Errorf("%s: schema version %d is dirty", dbPath, schema.Version)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dbPath, err)
	}

	return &SQLiteSlots{db: db, schema: schema}, nil
}

// Schema returns the migration state found when the database was opened.
func (r *SQLiteSlots) Schema() SchemaStatus {
	return r.schema
}

func (r *SQLiteSlots) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *SQLiteSlots) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Slot returns a view of the named slot.
func (r *SQLiteSlots) Slot(name string) *SQLiteSlot {
	return &SQLiteSlot{db: r.db, name: name}
}

// Names lists the slots that have been written.
func (r *SQLiteSlots) Names(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan slot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SQLiteSlot is a single row of the slots table.
type SQLiteSlot struct {
	db   *sql.DB
	name string
}

func (s *SQLiteSlot) Read(ctx context.Context) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, s.name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", s.name, err)
	}
	return []byte(value), nil
}

func (s *SQLiteSlot) Write(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.name, string(data))
	if err != nil {
		return fmt.Errorf("write slot %s: %w", s.name, err)
	}
	return nil
}
