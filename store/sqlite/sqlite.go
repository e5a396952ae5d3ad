/*
Package sqlite provides the SQLite-backed rent payment store.

PURPOSE:
  Opens a SQLite database, applies the schema and returns the shared
  sqldb.Store configured with the SQLite dialect. Used for local
  development, the demo server and tests (":memory:").

STORAGE TYPES:
  - Dates are TEXT "YYYY-MM-DD" in DATE-declared columns, so range
    queries compare lexically and go-sqlite3 returns them as time.Time
  - Money is TEXT so decimal values round-trip exactly (NUMERIC affinity
    would turn "387.10" into a float)
  - Timestamps are TIMESTAMP-declared and parsed by the driver

CONCURRENCY:
  ":memory:" databases exist per connection, so the pool is pinned to a
  single connection for them. File databases use WAL mode:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/rent.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - store/sqldb: the shared Gateway implementation
  - store/postgres: the PostgreSQL dialect
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/rent-engine/store/sqldb"
)

const schema = `
	-- Properties
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	-- Tenants (directory row; lease terms in typed columns and/or details)
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		lease_start DATE,
		lease_end DATE,
		monthly_rent TEXT,
		rent_due_day INTEGER,
		payment_frequency TEXT,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tenants_property
		ON tenants(property_id);

	-- Rent payments (one row per billing period)
	CREATE TABLE IF NOT EXISTS rent_payments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		payment_frequency TEXT NOT NULL DEFAULT 'monthly',
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		due_date DATE NOT NULL,
		amount_due TEXT NOT NULL,
		is_pro_rated BOOLEAN NOT NULL DEFAULT FALSE,
		pro_rate_days INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		amount_paid TEXT,
		payment_date DATE,
		payment_method TEXT,
		payment_reference TEXT,
		notes TEXT,
		invoice_number TEXT,
		invoice_generated_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(tenant_id, period_start)
	);

	-- Hot path: per-tenant reads ordered by due date
	CREATE INDEX IF NOT EXISTS idx_rent_payments_tenant_due
		ON rent_payments(tenant_id, due_date);

	CREATE INDEX IF NOT EXISTS idx_rent_payments_status
		ON rent_payments(status);
`

// Dialect is the SQLite dialect.
type Dialect struct{}

func (Dialect) Name() string               { return "sqlite" }
func (Dialect) Rebind(query string) string { return sqldb.RebindQuestion(query) }
func (Dialect) Schema() string             { return schema }

func (Dialect) ProbeQuery() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'rent_payments'"
}

func (Dialect) IsMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func (Dialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// New opens (creating if needed) a SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...sqldb.Option) (*sqldb.Store, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	st := sqldb.New(db, Dialect{}, opts...)
	if err := st.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// Open opens the database without applying the schema.
func Open(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	return db, nil
}
