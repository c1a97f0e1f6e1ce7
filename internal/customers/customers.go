// Package customers keeps a durable directory of every customer the bot has
// talked to, for broadcast campaigns and support lookups.
package customers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/juju/clock"
	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS customers (
	phone         TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	first_contact TEXT NOT NULL
);
`

// Customer is one directory row.
type Customer struct {
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	FirstContact time.Time `json:"first_contact"`
}

// Directory is a SQLite-backed customer registry. SQLite supports a single
// writer, so the connection pool is pinned to one connection.
type Directory struct {
	db  *sql.DB
	clk clock.Clock
}

// Open creates or opens the directory database at path. Idempotent; pragmas
// and schema are applied on every open.
func Open(path string, clk clock.Clock) (*Directory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open customers db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect customers db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply customers schema: %w", err)
	}

	if clk == nil {
		clk = clock.WallClock
	}
	return &Directory{db: db, clk: clk}, nil
}

// Close closes the database.
func (d *Directory) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Log records a customer by canonical phone number. The first sighting wins:
// repeat orders keep the original first_contact and only refresh an empty
// name.
func (d *Directory) Log(ctx context.Context, phone, name string) error {
	if phone == "" {
		return fmt.Errorf("empty phone")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO customers (phone, name, first_contact)
		VALUES (?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = CASE WHEN customers.name = '' THEN excluded.name ELSE customers.name END
	`, phone, name, d.clk.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("log customer %s: %w", phone, err)
	}
	return nil
}

// List returns all known customers, oldest first.
func (d *Directory) List(ctx context.Context) ([]Customer, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT phone, name, first_contact
		FROM customers
		ORDER BY first_contact, phone
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		var ts string
		if err := rows.Scan(&c.Phone, &c.Name, &ts); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		if c.FirstContact, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("parse first_contact %q: %w", ts, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the directory size.
func (d *Directory) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}
