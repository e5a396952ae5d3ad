package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/rent-engine/factory"
	"github.com/warp/rent-engine/rent"
)

// =============================================================================
// DIRECTORY - tenants and properties
// =============================================================================

// Property represents a rentable property record.
type Property struct {
	ID        rent.PropertyID `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	CreatedAt time.Time       `json:"created_at"`
}

// Tenant represents a tenant record with its merged lease.
//
// On save, a zero Lease.Start leaves the typed lease columns NULL so the
// lease is read from Details alone (legacy rows).
type Tenant struct {
	ID         rent.TenantID   `json:"id"`
	PropertyID rent.PropertyID `json:"property_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email,omitempty"`
	Lease      rent.Lease      `json:"lease"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SaveProperty inserts or updates a property.
func (s *Store) SaveProperty(ctx context.Context, p Property) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO properties (id, name, address, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address`,
		string(p.ID), p.Name, p.Address, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to save property: %w", err)
	}
	return nil
}

// GetProperty retrieves a property by ID.
func (s *Store) GetProperty(ctx context.Context, id rent.PropertyID) (*Property, error) {
	var p Property
	err := s.queryRow(ctx,
		"SELECT id, name, address, created_at FROM properties WHERE id = ?", string(id),
	).Scan(&p.ID, &p.Name, &p.Address, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rent.ErrPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// ListProperties returns all properties ordered by name.
func (s *Store) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := s.query(ctx, "SELECT id, name, address, created_at FROM properties ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	properties := []Property{}
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

// SaveTenant inserts or updates a tenant.
func (s *Store) SaveTenant(ctx context.Context, t Tenant) error {
	var (
		start, end any // rent.Date or NULL
		monthly    decimal.NullDecimal
		dueDay     sql.NullInt64
		freq       sql.NullString
	)
	if !t.Lease.Start.IsZero() {
		cols := s.leases.Columns(t.Lease)
		start = *cols.LeaseStart
		if !cols.LeaseEnd.IsZero() {
			end = *cols.LeaseEnd
		}
		monthly = cols.MonthlyRent
		dueDay = sql.NullInt64{Int64: int64(*cols.RentDueDay), Valid: true}
		freq = nullString(cols.PaymentFrequency)
	}
	var details sql.NullString
	if len(t.Details) > 0 {
		details = sql.NullString{String: string(t.Details), Valid: true}
	}

	_, err := s.exec(ctx, s.db, `
		INSERT INTO tenants
		(id, property_id, name, email, lease_start, lease_end, monthly_rent, rent_due_day,
		 payment_frequency, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			name = excluded.name,
			email = excluded.email,
			lease_start = excluded.lease_start,
			lease_end = excluded.lease_end,
			monthly_rent = excluded.monthly_rent,
			rent_due_day = excluded.rent_due_day,
			payment_frequency = excluded.payment_frequency,
			details = excluded.details`,
		string(t.ID), string(t.PropertyID), t.Name, nullString(t.Email),
		start, end, monthly, dueDay, freq, details, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return nil
}

// DeleteTenant removes a tenant row. Payment rows are left untouched.
func (s *Store) DeleteTenant(ctx context.Context, id rent.TenantID) error {
	res, err := s.exec(ctx, s.db, "DELETE FROM tenants WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return rent.ErrTenantNotFound
	}
	return nil
}

const tenantColumns = `id, property_id, name, email, lease_start, lease_end, monthly_rent,
	rent_due_day, payment_frequency, details, created_at`

// GetTenant retrieves a tenant by ID with its merged lease. A stored lease
// that cannot be merged is returned as a zero Lease.
func (s *Store) GetTenant(ctx context.Context, id rent.TenantID) (*Tenant, error) {
	rows, err := s.query(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE id = ?", string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, rent.ErrTenantNotFound
	}
	t, err := s.scanTenant(rows)
	if errors.Is(err, rent.ErrInvalidLease) {
		s.logger.Warn("tenant lease could not be merged", zap.String("tenant_id", string(t.ID)), zap.Error(err))
		t.Lease = rent.Lease{}
	} else if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTenants returns all tenants ordered by name. Tenants whose stored
// lease cannot be merged are returned with a zero Lease.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.query(ctx, "SELECT "+tenantColumns+" FROM tenants ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		t, err := s.scanTenant(rows)
		if errors.Is(err, rent.ErrInvalidLease) {
			s.logger.Warn("tenant lease could not be merged", zap.String("tenant_id", string(t.ID)), zap.Error(err))
			t.Lease = rent.Lease{}
		} else if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// scanTenant scans one tenant row and merges its lease. On a merge
// failure the tenant is returned alongside the error.
func (s *Store) scanTenant(rows *sql.Rows) (Tenant, error) {
	var (
		t          Tenant
		email      sql.NullString
		start, end sql.Null[rent.Date]
		dueDay     sql.NullInt64
		freq       sql.NullString
		details    sql.NullString
		cols       factory.LeaseColumns
	)
	if err := rows.Scan(&t.ID, &t.PropertyID, &t.Name, &email, &start, &end,
		&cols.MonthlyRent, &dueDay, &freq, &details, &t.CreatedAt); err != nil {
		return t, fmt.Errorf("failed to scan tenant: %w", err)
	}
	t.Email = email.String
	t.CreatedAt = t.CreatedAt.UTC()
	if details.Valid {
		t.Details = json.RawMessage(details.String)
	}

	cols.TenantID = t.ID
	cols.PropertyID = t.PropertyID
	if start.Valid {
		cols.LeaseStart = &start.V
	}
	if end.Valid {
		cols.LeaseEnd = &end.V
	}
	if dueDay.Valid {
		day := int(dueDay.Int64)
		cols.RentDueDay = &day
	}
	cols.PaymentFrequency = freq.String

	lease, err := s.leases.MergeLease(cols, t.Details)
	if err != nil {
		return t, fmt.Errorf("tenant %s: %w", t.ID, err)
	}
	t.Lease = lease
	return t, nil
}
