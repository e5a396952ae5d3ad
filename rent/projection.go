/*
projection.go - Future cash flow

PURPOSE:
  Answers "what rent is scheduled from a date onwards?" for forecasting
  views. The projector holds no logic of its own beyond defaulting the
  start date: the gateway's range query already filters and orders by due
  date.

FAILURE POLICY:
  Like the status evaluator, the projector is a read path. A gateway error
  produces an empty projection, never an error.
*/
package rent

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CashFlowProjector lists a tenant's scheduled periods for forecasting.
type CashFlowProjector struct {
	Gateway Gateway
	Clock   func() time.Time
	Logger  *zap.Logger
}

// NewCashFlowProjector creates a projector using the wall clock.
func NewCashFlowProjector(gw Gateway, logger *zap.Logger) *CashFlowProjector {
	return &CashFlowProjector{Gateway: gw, Clock: time.Now, Logger: orNop(logger)}
}

// Project returns periods due on or after from (today when zero) and, when
// to is set, on or before to.
func (cp *CashFlowProjector) Project(ctx context.Context, tenantID TenantID, from Date, to *Date) []CashFlowEntry {
	if from.IsZero() {
		from = Today(cp.Clock)
	}
	if cp.Gateway == nil {
		return []CashFlowEntry{}
	}
	entries, err := cp.Gateway.FutureCashFlow(ctx, tenantID, from, to)
	if err != nil {
		orNop(cp.Logger).Warn("cash flow query failed, returning empty projection",
			zap.String("tenant_id", string(tenantID)),
			zap.Error(err),
		)
		return []CashFlowEntry{}
	}
	if entries == nil {
		return []CashFlowEntry{}
	}
	return entries
}

// CashFlowSummary totals a projection.
type CashFlowSummary struct {
	Scheduled   decimal.Decimal `json:"scheduled"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Periods     int             `json:"periods"`
}

// Summarize sums all entries and the still-pending ones.
func Summarize(entries []CashFlowEntry) CashFlowSummary {
	s := CashFlowSummary{Scheduled: decimal.Zero, Outstanding: decimal.Zero, Periods: len(entries)}
	for _, e := range entries {
		s.Scheduled = s.Scheduled.Add(e.Amount)
		if e.Status != PaymentPaid {
			s.Outstanding = s.Outstanding.Add(e.Amount)
		}
	}
	return s
}
