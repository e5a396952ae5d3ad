package rent

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// STATUS EVALUATOR - current vs overdue for the dashboard
// =============================================================================

// StatusEvaluator classifies a tenant's current billing period.
//
// It never fails: a missing current period, a lease that has not started
// and any gateway error all evaluate to current, so a dashboard can always
// render.
type StatusEvaluator struct {
	Gateway Gateway
	Clock   func() time.Time
	Logger  *zap.Logger
}

// NewStatusEvaluator creates an evaluator using the wall clock.
func NewStatusEvaluator(gw Gateway, logger *zap.Logger) *StatusEvaluator {
	return &StatusEvaluator{Gateway: gw, Clock: time.Now, Logger: orNop(logger)}
}

// Evaluate returns the status of the lease's current period as of today.
func (se *StatusEvaluator) Evaluate(ctx context.Context, lease Lease) RentStatusResult {
	return se.EvaluateAt(ctx, lease, Today(se.Clock))
}

// EvaluateAt is Evaluate with an explicit "today".
func (se *StatusEvaluator) EvaluateAt(ctx context.Context, lease Lease, today Date) RentStatusResult {
	current := RentStatusResult{Status: StatusCurrent}
	if se.Gateway == nil {
		return current
	}
	if !lease.Start.IsZero() && today.Before(lease.Start) {
		return current
	}

	payment, err := se.Gateway.CurrentPeriodPayment(ctx, lease.TenantID, today)
	if err != nil {
		orNop(se.Logger).Warn("current period lookup failed, reporting current",
			zap.String("tenant_id", string(lease.TenantID)),
			zap.Error(err),
		)
		return current
	}
	if payment == nil {
		return current
	}

	return Classify(*payment, today)
}

// Classify applies the overdue rule to a single payment: a pending payment
// whose due date is before today is overdue by the whole days in between.
func Classify(payment RentPayment, today Date) RentStatusResult {
	result := RentStatusResult{Status: StatusCurrent, Payment: &payment}
	if payment.IsPaid() {
		return result
	}
	if payment.DueDate.Before(today) {
		days := DaysBetween(payment.DueDate, today)
		result.Status = StatusOverdue
		result.DaysOverdue = &days
	}
	return result
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
