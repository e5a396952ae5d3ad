/*
Package factory builds rent.Lease values from stored and submitted JSON.

PURPOSE:
  Tenant rows carry lease terms in two places: typed columns added over
  time, and an older free-form "details" document. The factory merges both
  into one rent.Lease at the persistence boundary so nothing downstream
  has to know which representation held a field.

MERGE RULES:
  - A typed column that is set always wins
  - Otherwise the details document supplies the field
  - payment_frequency defaults to monthly, rent_due_day to 1
  - The merged lease is validated before it is returned

JSON SCHEMA (details document and API body):
  {
    "lease_start": "2024-06-10",
    "lease_end": "2025-06-10",
    "monthly_rent": "1450.00",
    "rent_due_day": 1,
    "payment_frequency": "monthly"
  }
  monthly_rent accepts a JSON number or string. The camelCase keys used
  by older clients (leaseStart, rentAmount, rentDueDay, ...) are read too.

USAGE:
  f := factory.NewLeaseFactory()
  lease, err := f.MergeLease(cols, detailsJSON)

SEE ALSO:
  - rent/types.go: Lease and Lease.Validate
  - store/sqldb/directory.go: where tenant rows are merged
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/rent-engine/rent"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LeaseJSON is the JSON representation of a lease.
type LeaseJSON struct {
	TenantID         string           `json:"tenant_id,omitempty"`
	PropertyID       string           `json:"property_id,omitempty"`
	LeaseStart       string           `json:"lease_start,omitempty"`
	LeaseEnd         string           `json:"lease_end,omitempty"`
	MonthlyRent      *decimal.Decimal `json:"monthly_rent,omitempty"`
	RentDueDay       *int             `json:"rent_due_day,omitempty"`
	PaymentFrequency string           `json:"payment_frequency,omitempty"`
}

// LeaseColumns are the typed lease columns of a tenant row. Nil / empty
// means the column is NULL.
type LeaseColumns struct {
	TenantID         rent.TenantID
	PropertyID       rent.PropertyID
	LeaseStart       *rent.Date
	LeaseEnd         *rent.Date
	MonthlyRent      decimal.NullDecimal
	RentDueDay       *int
	PaymentFrequency string
}

// legacyAliases maps older camelCase details keys to LeaseJSON keys,
// earlier entries taking precedence.
var legacyAliases = [][2]string{
	{"tenantId", "tenant_id"},
	{"propertyId", "property_id"},
	{"leaseStart", "lease_start"},
	{"leaseEnd", "lease_end"},
	{"monthlyRent", "monthly_rent"},
	{"rentAmount", "monthly_rent"},
	{"rentDueDay", "rent_due_day"},
	{"paymentFrequency", "payment_frequency"},
}

// =============================================================================
// LEASE FACTORY
// =============================================================================

// LeaseFactory converts between JSON lease documents and rent.Lease.
type LeaseFactory struct {
	// DefaultDueDay is used when neither representation sets rent_due_day.
	DefaultDueDay int
}

// NewLeaseFactory creates a lease factory with rent due on the 1st.
func NewLeaseFactory() *LeaseFactory {
	return &LeaseFactory{DefaultDueDay: rent.MinRentDueDay}
}

// ParseLease parses a JSON lease document into a validated Lease.
func (f *LeaseFactory) ParseLease(jsonStr string) (*rent.Lease, error) {
	doc, err := parseDetails([]byte(jsonStr))
	if err != nil {
		return nil, err
	}
	lease, err := f.merge(LeaseColumns{}, doc)
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// MergeLease combines typed columns with a raw details document. details
// may be nil or empty.
func (f *LeaseFactory) MergeLease(cols LeaseColumns, details []byte) (rent.Lease, error) {
	doc, err := parseDetails(details)
	if err != nil {
		return rent.Lease{}, err
	}
	return f.merge(cols, doc)
}

func (f *LeaseFactory) merge(cols LeaseColumns, doc LeaseJSON) (rent.Lease, error) {
	lease := rent.Lease{
		TenantID:   cols.TenantID,
		PropertyID: cols.PropertyID,
		Frequency:  rent.Frequency(cols.PaymentFrequency),
	}
	if lease.TenantID == "" {
		lease.TenantID = rent.TenantID(doc.TenantID)
	}
	if lease.PropertyID == "" {
		lease.PropertyID = rent.PropertyID(doc.PropertyID)
	}

	var err error
	if lease.Start, err = pickDate(cols.LeaseStart, doc.LeaseStart, "lease_start"); err != nil {
		return rent.Lease{}, err
	}
	if lease.End, err = pickDate(cols.LeaseEnd, doc.LeaseEnd, "lease_end"); err != nil {
		return rent.Lease{}, err
	}

	switch {
	case cols.MonthlyRent.Valid:
		lease.MonthlyRent = cols.MonthlyRent.Decimal
	case doc.MonthlyRent != nil:
		lease.MonthlyRent = *doc.MonthlyRent
	default:
		return rent.Lease{}, &rent.LeaseValidationError{Field: "monthly_rent", Reason: "is required"}
	}

	switch {
	case cols.RentDueDay != nil:
		lease.RentDueDay = *cols.RentDueDay
	case doc.RentDueDay != nil:
		lease.RentDueDay = *doc.RentDueDay
	default:
		lease.RentDueDay = f.DefaultDueDay
	}

	if lease.Frequency == "" {
		lease.Frequency = rent.Frequency(strings.ToLower(doc.PaymentFrequency))
	}
	if lease.Frequency == "" {
		lease.Frequency = rent.FrequencyMonthly
	}

	if err := lease.Validate(); err != nil {
		return rent.Lease{}, err
	}
	return lease, nil
}

// ToJSON converts a Lease to LeaseJSON.
func (f *LeaseFactory) ToJSON(lease rent.Lease) LeaseJSON {
	rentAmount := lease.MonthlyRent
	dueDay := lease.RentDueDay
	return LeaseJSON{
		TenantID:         string(lease.TenantID),
		PropertyID:       string(lease.PropertyID),
		LeaseStart:       lease.Start.String(),
		LeaseEnd:         lease.End.String(),
		MonthlyRent:      &rentAmount,
		RentDueDay:       &dueDay,
		PaymentFrequency: string(lease.EffectiveFrequency()),
	}
}

// Columns splits a Lease into its typed column values.
func (f *LeaseFactory) Columns(lease rent.Lease) LeaseColumns {
	start, end := lease.Start, lease.End
	dueDay := lease.RentDueDay
	return LeaseColumns{
		TenantID:         lease.TenantID,
		PropertyID:       lease.PropertyID,
		LeaseStart:       &start,
		LeaseEnd:         &end,
		MonthlyRent:      decimal.NewNullDecimal(lease.MonthlyRent),
		RentDueDay:       &dueDay,
		PaymentFrequency: string(lease.EffectiveFrequency()),
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseDetails decodes a details document, translating legacy keys and
// loosely typed values ("rent_due_day": "5").
func parseDetails(raw []byte) (LeaseJSON, error) {
	var doc LeaseJSON
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return doc, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return doc, fmt.Errorf("%w: failed to parse lease JSON: %v", rent.ErrInvalidLease, err)
	}
	for _, alias := range legacyAliases {
		legacy, key := alias[0], alias[1]
		if v, ok := fields[legacy]; ok {
			if _, set := fields[key]; !set {
				fields[key] = v
			}
		}
	}

	if v, ok := fields["rent_due_day"]; ok {
		day, err := looseInt(v)
		if err != nil {
			return doc, &rent.LeaseValidationError{Field: "rent_due_day", Reason: err.Error()}
		}
		fields["rent_due_day"] = json.RawMessage(strconv.Itoa(day))
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return doc, fmt.Errorf("failed to normalize lease JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return doc, fmt.Errorf("%w: failed to parse lease JSON: %v", rent.ErrInvalidLease, err)
	}
	return doc, nil
}

func looseInt(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("must be an integer, got %q", s)
	}
	return n, nil
}

func pickDate(col *rent.Date, doc, field string) (rent.Date, error) {
	if col != nil && !col.IsZero() {
		return *col, nil
	}
	if doc == "" {
		return rent.Date{}, &rent.LeaseValidationError{Field: field, Reason: "is required"}
	}
	d, err := rent.ParseDate(doc)
	if err != nil {
		return rent.Date{}, &rent.LeaseValidationError{Field: field, Reason: err.Error()}
	}
	return d, nil
}
