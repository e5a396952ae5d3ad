/*
store.go - Persistence boundary for rent payment rows

PURPOSE:
  Defines the Gateway the engine talks to. Rent payment rows, tenants and
  properties are owned by the store; the engine only computes periods and
  reads rows back by tenant or payment ID.

CAPABILITY NEGOTIATION:
  A deployment may run against a database where the payment tables were
  never migrated. Instead of the engine inferring that from driver error
  codes, every Gateway reports a Capability. Read methods of an
  Unavailable gateway return empty results with a nil error; writes
  return ErrStoreUnavailable.

WRITES:
  InsertPeriods, RecordPayment and StampInvoice are the only writes.
  InsertPeriods is rejected with ErrDuplicatePeriod when any period for
  the same (tenant, period_start) already exists.

IMPLEMENTATIONS:
  - rent/store/memory.go: in-memory, for tests and the CLI
  - store/sqldb: database/sql implementation used by
    store/sqlite and store/postgres
*/
package rent

import (
	"context"
	"time"
)

// Capability reports whether the backing store holds the payment tables.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityAvailable
	CapabilityUnavailable
)

func (c Capability) String() string {
	switch c {
	case CapabilityAvailable:
		return "available"
	case CapabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Gateway persists billing periods and payment state.
type Gateway interface {
	// Capability reports, and caches, whether the payment tables exist.
	Capability(ctx context.Context) Capability

	// InsertPeriods stores periods as pending payments, in order.
	InsertPeriods(ctx context.Context, tenantID TenantID, propertyID PropertyID, periods []BillingPeriod, freq Frequency) error

	// PaymentsForTenant returns the tenant's payments ordered by due date.
	PaymentsForTenant(ctx context.Context, tenantID TenantID) ([]RentPayment, error)

	// CurrentPeriodPayment returns the payment whose period overlaps the
	// calendar month containing today, or nil. When several overlap, the
	// one containing today wins, else the earliest.
	CurrentPeriodPayment(ctx context.Context, tenantID TenantID, today Date) (*RentPayment, error)

	// RecordPayment marks a pending payment paid.
	RecordPayment(ctx context.Context, rec PaymentRecord) error

	// FutureCashFlow returns periods with due_date >= from (and <= to
	// when to is set), ascending.
	FutureCashFlow(ctx context.Context, tenantID TenantID, from Date, to *Date) ([]CashFlowEntry, error)

	// PaymentForInvoice returns the payment joined with tenant name and
	// property address, or nil when it does not exist.
	PaymentForInvoice(ctx context.Context, paymentID PaymentID) (*InvoicePayment, error)

	// StampInvoice writes the invoice number and generation time.
	StampInvoice(ctx context.Context, paymentID PaymentID, number string, generatedAt time.Time) error
}

// SelectCurrentPeriod applies the CurrentPeriodPayment rule to payments
// sorted by due date. Gateways that cannot express it in a query use it
// directly.
func SelectCurrentPeriod(payments []RentPayment, today Date) *RentPayment {
	monthStart := today.StartOfMonth()
	nextMonth := AnchorInMonth(monthStart.Year(), monthStart.Month()+1, 1)

	var first *RentPayment
	for i := range payments {
		p := &payments[i]
		if !p.PeriodStart.Before(nextMonth) || !p.PeriodEnd.After(monthStart) {
			continue
		}
		if today.AfterOrEqual(p.PeriodStart) && today.Before(p.PeriodEnd) {
			return p
		}
		if first == nil {
			first = p
		}
	}
	return first
}
