/*
Package rent provides the rent payment scheduling and status engine.

PURPOSE:
  Turns a lease into billing periods, pro-rates partial periods, decides
  whether a tenant's current period is current or overdue, projects
  future cash flow and mints invoice numbers. Everything except the
  Gateway calls is a pure computation over immutable values.

KEY CONCEPTS IN THIS FILE (types.go):
  - Lease: the occupancy window, monthly rent and due-day anchor
  - BillingPeriod: one rent-collection interval [PeriodStart, PeriodEnd)
  - RentPayment: a persisted BillingPeriod with a pending/paid lifecycle
  - RentStatusResult: current/overdue classification of today's period

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, rounded to cents only where a
     customer-visible amount is produced
  2. Immutability: dates are rent.Date values, nothing mutates its inputs
  3. Pure core: generation and proration never touch the store

USAGE:
  lease := rent.Lease{
      TenantID:    "ten-123",
      Start:       rent.NewDate(2024, time.June, 10),
      End:         rent.NewDate(2025, time.June, 10),
      MonthlyRent: decimal.NewFromInt(900),
      RentDueDay:  1,
      Frequency:   rent.FrequencyMonthly,
  }
  periods, err := lease.Periods()

SEE ALSO:
  - period.go: period generation
  - proration.go: partial-period amounts
  - store.go: the Gateway persistence boundary
*/
package rent

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type PropertyID string
type PaymentID string

// =============================================================================
// LEASE
// =============================================================================

// Frequency is how often rent is billed.
type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly" // reserved, not generated
	FrequencyAnnual    Frequency = "annual"    // reserved, not generated
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return true
	}
	return false
}

const (
	MinRentDueDay = 1
	MaxRentDueDay = 28
)

// Lease is the input to period generation. End is exclusive.
type Lease struct {
	TenantID    TenantID        `json:"tenant_id"`
	PropertyID  PropertyID      `json:"property_id"`
	Start       Date            `json:"lease_start"`
	End         Date            `json:"lease_end"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	RentDueDay  int             `json:"rent_due_day"`
	Frequency   Frequency       `json:"payment_frequency"`
}

// Validate checks the preconditions period generation relies on.
func (l Lease) Validate() error {
	switch {
	case l.TenantID == "":
		return &LeaseValidationError{Field: "tenant_id", Reason: "is required"}
	case l.Start.IsZero():
		return &LeaseValidationError{Field: "lease_start", Reason: "is required"}
	case l.End.IsZero():
		return &LeaseValidationError{Field: "lease_end", Reason: "is required"}
	case !l.End.After(l.Start):
		return &LeaseValidationError{Field: "lease_end", Reason: "must be after lease_start"}
	case l.MonthlyRent.IsNegative():
		return &LeaseValidationError{Field: "monthly_rent", Reason: "must not be negative"}
	case l.RentDueDay < MinRentDueDay || l.RentDueDay > MaxRentDueDay:
		return &LeaseValidationError{Field: "rent_due_day", Reason: "must be between 1 and 28"}
	case l.Frequency != "" && !l.Frequency.Valid():
		return &LeaseValidationError{Field: "payment_frequency", Reason: "unknown frequency " + string(l.Frequency)}
	}
	return nil
}

// EffectiveFrequency returns the frequency, defaulting to monthly.
func (l Lease) EffectiveFrequency() Frequency {
	if l.Frequency == "" {
		return FrequencyMonthly
	}
	return l.Frequency
}

// Periods generates the lease's billing periods.
func (l Lease) Periods() ([]BillingPeriod, error) {
	return GeneratePaymentPeriods(l.Start, l.End, l.MonthlyRent, l.RentDueDay, l.EffectiveFrequency())
}

// Active reports whether the lease covers the given day.
func (l Lease) Active(on Date) bool {
	return on.AfterOrEqual(l.Start) && on.Before(l.End)
}

// =============================================================================
// BILLING PERIOD
// =============================================================================

// BillingPeriod is one rent-collection interval. PeriodEnd is exclusive
// and DueDate always equals PeriodStart (rent is paid in advance).
type BillingPeriod struct {
	PeriodStart Date            `json:"period_start"`
	PeriodEnd   Date            `json:"period_end"`
	DueDate     Date            `json:"due_date"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	IsProRated  bool            `json:"is_pro_rated"`
	ProRateDays *int            `json:"pro_rate_days,omitempty"`
}

// Days returns the number of days the period covers.
func (p BillingPeriod) Days() int { return DaysBetween(p.PeriodStart, p.PeriodEnd) }

// =============================================================================
// RENT PAYMENT
// =============================================================================

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// RentPayment is a persisted billing period. It is created pending and
// moves to paid exactly once.
type RentPayment struct {
	ID         PaymentID  `json:"id"`
	TenantID   TenantID   `json:"tenant_id"`
	PropertyID PropertyID `json:"property_id"`
	Frequency  Frequency  `json:"payment_frequency"`
	BillingPeriod

	Status             PaymentStatus    `json:"status"`
	AmountPaid         *decimal.Decimal `json:"amount_paid,omitempty"`
	PaymentDate        *Date            `json:"payment_date,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentReference   string           `json:"payment_reference,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	InvoiceNumber      string           `json:"invoice_number,omitempty"`
	InvoiceGeneratedAt *time.Time       `json:"invoice_generated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPaid reports whether the payment has been recorded.
func (p RentPayment) IsPaid() bool { return p.Status == PaymentPaid }

// PaymentRecord is the input for recording a payment against a period.
type PaymentRecord struct {
	PaymentID        PaymentID
	AmountPaid       decimal.Decimal
	PaymentDate      Date
	PaymentMethod    string
	PaymentReference string
	Notes            string
}

// =============================================================================
// DERIVED RESULTS
// =============================================================================

type RentStatus string

const (
	StatusCurrent RentStatus = "current"
	StatusOverdue RentStatus = "overdue"
)

// RentStatusResult classifies the tenant's current period.
// DaysOverdue is set iff Status is overdue.
type RentStatusResult struct {
	Status      RentStatus   `json:"status"`
	DaysOverdue *int         `json:"days_overdue,omitempty"`
	Payment     *RentPayment `json:"payment,omitempty"`
}

// CashFlowEntry is one scheduled period in a cash flow projection.
type CashFlowEntry struct {
	PeriodStart Date            `json:"period_start"`
	PeriodEnd   Date            `json:"period_end"`
	DueDate     Date            `json:"due_date"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PaymentStatus   `json:"status"`
}

// InvoicePayment is a payment joined with the names an invoice prints.
type InvoicePayment struct {
	Payment         RentPayment
	TenantName      string
	PropertyAddress string
}

// Invoice is the result of allocating an invoice number to a payment.
type Invoice struct {
	Number          string      `json:"invoice_number"`
	GeneratedAt     time.Time   `json:"generated_at"`
	Payment         RentPayment `json:"payment"`
	TenantName      string      `json:"tenant_name"`
	PropertyAddress string      `json:"property_address"`
}
