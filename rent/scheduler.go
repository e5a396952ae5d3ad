package rent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// =============================================================================
// SCHEDULER - generation wired to persistence
// =============================================================================

// Scheduler creates a lease's payment schedule in the store and records
// payments against it.
type Scheduler struct {
	Gateway Gateway
	Logger  *zap.Logger
}

// NewScheduler creates a scheduler over the given gateway.
func NewScheduler(gw Gateway, logger *zap.Logger) *Scheduler {
	return &Scheduler{Gateway: gw, Logger: orNop(logger)}
}

// Preview validates the lease and generates its periods without storing them.
func (s *Scheduler) Preview(lease Lease) ([]BillingPeriod, error) {
	if err := lease.Validate(); err != nil {
		return nil, err
	}
	return lease.Periods()
}

// CreateSchedule generates the lease's periods and inserts them as pending
// payments. The generated periods are returned on success.
// A failed insert is returned; a retried schedule for the same lease fails
// with ErrDuplicatePeriod rather than duplicating rows.
func (s *Scheduler) CreateSchedule(ctx context.Context, lease Lease) ([]BillingPeriod, error) {
	periods, err := s.Preview(lease)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return periods, nil
	}

	if err := s.Gateway.InsertPeriods(ctx, lease.TenantID, lease.PropertyID, periods, lease.EffectiveFrequency()); err != nil {
		orNop(s.Logger).Error("inserting payment periods failed",
			zap.String("tenant_id", string(lease.TenantID)),
			zap.Int("periods", len(periods)),
			zap.Error(err),
		)
		return nil, &WriteError{Op: "insert periods", Err: err}
	}

	orNop(s.Logger).Info("payment schedule created",
		zap.String("tenant_id", string(lease.TenantID)),
		zap.Int("periods", len(periods)),
		zap.String("total_due", TotalDue(periods).StringFixed(2)),
	)
	return periods, nil
}

// RecordPayment marks a pending period paid.
func (s *Scheduler) RecordPayment(ctx context.Context, rec PaymentRecord) error {
	switch {
	case rec.PaymentID == "":
		return fmt.Errorf("%w: payment id is required", ErrInvalidPayment)
	case !rec.AmountPaid.IsPositive():
		return fmt.Errorf("%w: amount paid must be positive", ErrInvalidPayment)
	case rec.PaymentDate.IsZero():
		return fmt.Errorf("%w: payment date is required", ErrInvalidPayment)
	}

	if err := s.Gateway.RecordPayment(ctx, rec); err != nil {
		return &WriteError{Op: "record payment", Err: err}
	}
	orNop(s.Logger).Info("payment recorded",
		zap.String("payment_id", string(rec.PaymentID)),
		zap.String("amount_paid", rec.AmountPaid.StringFixed(2)),
	)
	return nil
}

// Payments lists a tenant's payments. Store failures yield an empty list.
func (s *Scheduler) Payments(ctx context.Context, tenantID TenantID) []RentPayment {
	payments, err := s.Gateway.PaymentsForTenant(ctx, tenantID)
	if err != nil {
		orNop(s.Logger).Warn("listing payments failed, returning none",
			zap.String("tenant_id", string(tenantID)),
			zap.Error(err),
		)
		return []RentPayment{}
	}
	if payments == nil {
		return []RentPayment{}
	}
	return payments
}
