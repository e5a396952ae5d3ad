/*
Package sqldb provides the database/sql implementation of rent.Gateway
shared by the SQLite and PostgreSQL adapters.

PURPOSE:
  Persists rent payment rows plus the minimal tenant and property
  directory the invoice join needs. Engine differences (placeholders,
  DDL types, error classification, table probing) live behind Dialect;
  store/sqlite and store/postgres only open the connection and pick one.

KEY TABLES:
  properties:     id, name, address
  tenants:        directory row; typed lease columns plus a legacy
                  "details" JSON document, merged by factory.LeaseFactory
  rent_payments:  one row per billing period, UNIQUE(tenant_id, period_start)

CAPABILITY:
  The first gateway call probes whether rent_payments exists and caches
  the answer. Reads against an unavailable store return empty results;
  writes return rent.ErrStoreUnavailable. A query that fails with a
  missing-table error flips the cache to unavailable. Reconfigure (called
  by Migrate and Reset) clears it.

WRITES:
  InsertPeriods, RecordPayment and StampInvoice run inside store.Do, a
  bounded exponential backoff. Domain errors are never retried.
  InsertPeriods is one transaction: a duplicate period rolls the whole
  batch back.

SEE ALSO:
  - rent/store.go: the Gateway contract
  - store/sqlite, store/postgres: dialects and constructors
  - rent/store/memory.go: in-memory implementation for tests
*/
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/rent-engine/factory"
	"github.com/warp/rent-engine/metrics"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store"
)

// Store implements rent.Gateway and the tenant/property directory.
type Store struct {
	db      *sql.DB
	dialect Dialect
	retry   store.RetryPolicy
	logger  *zap.Logger
	leases  *factory.LeaseFactory
	now     func() time.Time

	capMu      sync.Mutex
	capability rent.Capability
}

var _ rent.Gateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithRetry sets the write retry policy.
func WithRetry(p store.RetryPolicy) Option {
	return func(s *Store) { s.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open database. It does not create tables; call Migrate.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		retry:   store.DefaultRetryPolicy(),
		logger:  zap.NewNop(),
		leases:  factory.NewLeaseFactory(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying pool (metrics gauges, tests).
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema and re-probes the capability.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema()); err != nil {
		return fmt.Errorf("failed to migrate %s database: %w", s.dialect.Name(), err)
	}
	s.Reconfigure()
	return nil
}

// Reconfigure forgets the cached capability; the next call probes again.
func (s *Store) Reconfigure() {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	s.capability = rent.CapabilityUnknown
}

// =============================================================================
// CAPABILITY
// =============================================================================

// Capability probes for the payment tables once and caches the result.
// A failed probe is reported unavailable but not cached.
func (s *Store) Capability(ctx context.Context) rent.Capability {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	if s.capability != rent.CapabilityUnknown {
		return s.capability
	}

	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.ProbeQuery()).Scan(&n); err != nil {
		s.logger.Warn("capability probe failed", zap.String("dialect", s.dialect.Name()), zap.Error(err))
		return rent.CapabilityUnavailable
	}
	if n > 0 {
		s.capability = rent.CapabilityAvailable
	} else {
		s.capability = rent.CapabilityUnavailable
	}
	s.logger.Info("payment store capability",
		zap.String("dialect", s.dialect.Name()),
		zap.Stringer("capability", s.capability),
	)
	return s.capability
}

func (s *Store) available(ctx context.Context) bool {
	return s.Capability(ctx) == rent.CapabilityAvailable
}

func (s *Store) markUnavailable() {
	s.capMu.Lock()
	defer s.capMu.Unlock()
	s.capability = rent.CapabilityUnavailable
}

// degrade reports whether err should be answered with an empty result,
// flipping the capability when the table has gone away.
func (s *Store) degrade(op string, err error) bool {
	if !s.dialect.IsMissingTable(err) {
		return false
	}
	s.markUnavailable()
	metrics.IncStoreDegraded(op)
	s.logger.Warn("payment table missing, returning empty result", zap.String("op", op), zap.Error(err))
	return true
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) exec(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	return db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	defer s.Reconfigure()
	for _, table := range []string{"rent_payments", "tenants", "properties"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			if s.dialect.IsMissingTable(err) {
				continue
			}
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
