/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types that
  already carry stable JSON tags (rent.RentPayment, rent.BillingPeriod,
  rent.CashFlowEntry, rent.Invoice, sqldb.Property) are returned as-is;
  the types here wrap or reshape them.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

LEASE BODIES:
  Lease documents are passed through as raw JSON and merged by
  factory.LeaseFactory, so the API accepts the same snake_case and legacy
  camelCase keys the tenant details column does.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/lease.go: LeaseJSON
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/rent-engine/factory"
	"github.com/warp/rent-engine/rent"
)

// =============================================================================
// DIRECTORY
// =============================================================================

// CreatePropertyRequest is the request to create a property.
type CreatePropertyRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CreateTenantRequest creates a tenant and its payment schedule.
// Lease holds the lease document; Details is an optional legacy document
// stored alongside it.
type CreateTenantRequest struct {
	ID         string          `json:"id"`
	PropertyID string          `json:"property_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Lease      json.RawMessage `json:"lease"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// TenantDTO represents a tenant in API responses. Lease is nil when the
// stored lease could not be merged.
type TenantDTO struct {
	ID         string             `json:"id"`
	PropertyID string             `json:"property_id"`
	Name       string             `json:"name"`
	Email      string             `json:"email,omitempty"`
	Lease      *factory.LeaseJSON `json:"lease,omitempty"`
	CreatedAt  string             `json:"created_at,omitempty"`
}

// CreateTenantResponse is returned after a tenant and schedule are stored.
type CreateTenantResponse struct {
	Tenant   TenantDTO   `json:"tenant"`
	Schedule ScheduleDTO `json:"schedule"`
}

// =============================================================================
// SCHEDULES AND PAYMENTS
// =============================================================================

// ScheduleDTO is a generated list of billing periods.
type ScheduleDTO struct {
	Periods  []rent.BillingPeriod `json:"periods"`
	Count    int                  `json:"count"`
	TotalDue decimal.Decimal      `json:"total_due"`
}

// PaymentsDTO lists a tenant's payment rows.
type PaymentsDTO struct {
	TenantID string             `json:"tenant_id"`
	Payments []rent.RentPayment `json:"payments"`
}

// RecordPaymentRequest records a payment against a pending period.
type RecordPaymentRequest struct {
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	PaymentDate      string          `json:"payment_date"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// StatusDTO is a tenant's rent status on a given day.
type StatusDTO struct {
	TenantID string `json:"tenant_id"`
	AsOf     string `json:"as_of"`
	rent.RentStatusResult
}

// CashFlowDTO is a cash flow projection with its totals.
type CashFlowDTO struct {
	TenantID string               `json:"tenant_id"`
	From     string               `json:"from"`
	To       string               `json:"to,omitempty"`
	Entries  []rent.CashFlowEntry `json:"entries"`
	Summary  rent.CashFlowSummary `json:"summary"`
}

// =============================================================================
// SYSTEM
// =============================================================================

// HealthDTO reports service and store state.
type HealthDTO struct {
	Status     string `json:"status"`
	Store      string `json:"store"`
	Capability string `json:"capability"`
	Version    string `json:"version,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tenants     int    `json:"tenants"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ScenarioLoadedDTO summarises a loaded scenario.
type ScenarioLoadedDTO struct {
	Scenario ScenarioDTO `json:"scenario"`
	Periods  int         `json:"periods"`
	Payments int         `json:"payments_recorded"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
