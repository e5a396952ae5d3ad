// Package store provides an in-memory rent.Gateway.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/rent-engine/rent"
)

// =============================================================================
// MEMORY GATEWAY - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	payments   map[rent.PaymentID]*rent.RentPayment
	byTenant   map[rent.TenantID][]rent.PaymentID
	starts     map[periodKey]rent.PaymentID
	tenants    map[rent.TenantID]string
	properties map[rent.PropertyID]string
	capability rent.Capability
	now        func() time.Time
}

type periodKey struct {
	TenantID rent.TenantID
	Start    string
}

func NewMemory() *Memory {
	return &Memory{
		payments:   make(map[rent.PaymentID]*rent.RentPayment),
		byTenant:   make(map[rent.TenantID][]rent.PaymentID),
		starts:     make(map[periodKey]rent.PaymentID),
		tenants:    make(map[rent.TenantID]string),
		properties: make(map[rent.PropertyID]string),
		capability: rent.CapabilityAvailable,
		now:        time.Now,
	}
}

// SetCapability simulates a store with or without payment tables.
func (m *Memory) SetCapability(c rent.Capability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capability = c
}

// SetNames registers the names PaymentForInvoice joins in.
func (m *Memory) SetNames(tenantID rent.TenantID, tenantName string, propertyID rent.PropertyID, address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenantID] = tenantName
	m.properties[propertyID] = address
}

func (m *Memory) Capability(context.Context) rent.Capability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capability
}

func (m *Memory) available() bool { return m.capability == rent.CapabilityAvailable }

// InsertPeriods adds all periods or none.
func (m *Memory) InsertPeriods(_ context.Context, tenantID rent.TenantID, propertyID rent.PropertyID, periods []rent.BillingPeriod, freq rent.Frequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available() {
		return rent.ErrStoreUnavailable
	}

	// Check uniqueness first (atomic check)
	seen := make(map[string]bool, len(periods))
	for _, p := range periods {
		start := p.PeriodStart.String()
		if _, exists := m.starts[periodKey{tenantID, start}]; exists || seen[start] {
			return rent.ErrDuplicatePeriod
		}
		seen[start] = true
	}

	now := m.now().UTC()
	for _, p := range periods {
		id := rent.PaymentID(uuid.NewString())
		m.payments[id] = &rent.RentPayment{
			ID:            id,
			TenantID:      tenantID,
			PropertyID:    propertyID,
			Frequency:     freq,
			BillingPeriod: p,
			Status:        rent.PaymentPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		m.byTenant[tenantID] = append(m.byTenant[tenantID], id)
		m.starts[periodKey{tenantID, p.PeriodStart.String()}] = id
	}
	return nil
}

func (m *Memory) PaymentsForTenant(_ context.Context, tenantID rent.TenantID) ([]rent.RentPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.available() {
		return []rent.RentPayment{}, nil
	}
	return m.sortedLocked(tenantID), nil
}

func (m *Memory) sortedLocked(tenantID rent.TenantID) []rent.RentPayment {
	ids := m.byTenant[tenantID]
	result := make([]rent.RentPayment, 0, len(ids))
	for _, id := range ids {
		result = append(result, *m.payments[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result
}

func (m *Memory) CurrentPeriodPayment(_ context.Context, tenantID rent.TenantID, today rent.Date) (*rent.RentPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.available() {
		return nil, nil
	}
	return rent.SelectCurrentPeriod(m.sortedLocked(tenantID), today), nil
}

func (m *Memory) RecordPayment(_ context.Context, rec rent.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available() {
		return rent.ErrStoreUnavailable
	}
	p, ok := m.payments[rec.PaymentID]
	if !ok {
		return rent.ErrPaymentNotFound
	}
	if p.IsPaid() {
		return rent.ErrAlreadyPaid
	}
	amount := rec.AmountPaid
	paidOn := rec.PaymentDate
	p.Status = rent.PaymentPaid
	p.AmountPaid = &amount
	p.PaymentDate = &paidOn
	p.PaymentMethod = rec.PaymentMethod
	p.PaymentReference = rec.PaymentReference
	p.Notes = rec.Notes
	p.UpdatedAt = m.now().UTC()
	return nil
}

func (m *Memory) FutureCashFlow(_ context.Context, tenantID rent.TenantID, from rent.Date, to *rent.Date) ([]rent.CashFlowEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := []rent.CashFlowEntry{}
	if !m.available() {
		return entries, nil
	}
	for _, p := range m.sortedLocked(tenantID) {
		if p.DueDate.Before(from) {
			continue
		}
		if to != nil && p.DueDate.After(*to) {
			continue
		}
		entries = append(entries, rent.CashFlowEntry{
			PeriodStart: p.PeriodStart,
			PeriodEnd:   p.PeriodEnd,
			DueDate:     p.DueDate,
			Amount:      p.AmountDue,
			Status:      p.Status,
		})
	}
	return entries, nil
}

func (m *Memory) PaymentForInvoice(_ context.Context, paymentID rent.PaymentID) (*rent.InvoicePayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.available() {
		return nil, nil
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, nil
	}
	return &rent.InvoicePayment{
		Payment:         *p,
		TenantName:      m.tenants[p.TenantID],
		PropertyAddress: m.properties[p.PropertyID],
	}, nil
}

func (m *Memory) StampInvoice(_ context.Context, paymentID rent.PaymentID, number string, generatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available() {
		return rent.ErrStoreUnavailable
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return rent.ErrPaymentNotFound
	}
	at := generatedAt
	p.InvoiceNumber = number
	p.InvoiceGeneratedAt = &at
	p.UpdatedAt = m.now().UTC()
	return nil
}
