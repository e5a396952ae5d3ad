package rent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/rent/store"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func testLease(start, end string, dueDay int) rent.Lease {
	return rent.Lease{
		TenantID:    "ten-0001",
		PropertyID:  "prop-0001",
		Start:       date(start),
		End:         date(end),
		MonthlyRent: dec("1200"),
		RentDueDay:  dueDay,
		Frequency:   rent.FrequencyMonthly,
	}
}

// scheduled returns a memory store holding the lease's schedule.
func scheduled(t *testing.T, lease rent.Lease) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	_, err := rent.NewScheduler(mem, nil).CreateSchedule(context.Background(), lease)
	require.NoError(t, err)
	return mem
}

func clockAt(s string) func() time.Time {
	d := date(s)
	return func() time.Time { return d.Time().Add(15 * time.Hour) }
}

// brokenGateway fails every read it is asked for.
type brokenGateway struct {
	rent.Gateway
}

var errConnReset = errors.New("connection reset by peer")

func (brokenGateway) CurrentPeriodPayment(context.Context, rent.TenantID, rent.Date) (*rent.RentPayment, error) {
	return nil, errConnReset
}

func (brokenGateway) FutureCashFlow(context.Context, rent.TenantID, rent.Date, *rent.Date) ([]rent.CashFlowEntry, error) {
	return nil, errConnReset
}

func (brokenGateway) PaymentsForTenant(context.Context, rent.TenantID) ([]rent.RentPayment, error) {
	return nil, errConnReset
}

func (brokenGateway) PaymentForInvoice(context.Context, rent.PaymentID) (*rent.InvoicePayment, error) {
	return nil, errConnReset
}

// =============================================================================
// STATUS EVALUATION
// =============================================================================

func TestStatus_OverdueByOneDay(t *testing.T) {
	// GIVEN: a pending period due yesterday
	lease := testLease("2024-06-14", "2024-12-14", 14)
	se := rent.NewStatusEvaluator(scheduled(t, lease), nil)
	se.Clock = clockAt("2024-06-15")

	// WHEN: status is evaluated today
	result := se.Evaluate(context.Background(), lease)

	// THEN: the tenant is one day overdue
	assert.Equal(t, rent.StatusOverdue, result.Status)
	require.NotNil(t, result.DaysOverdue)
	assert.Equal(t, 1, *result.DaysOverdue)
	require.NotNil(t, result.Payment)
	assert.Equal(t, "2024-06-14", result.Payment.DueDate.String())
}

func TestStatus_DueTodayIsCurrent(t *testing.T) {
	lease := testLease("2024-06-14", "2024-12-14", 14)
	se := rent.NewStatusEvaluator(scheduled(t, lease), nil)

	result := se.EvaluateAt(context.Background(), lease, date("2024-06-14"))

	assert.Equal(t, rent.StatusCurrent, result.Status)
	assert.Nil(t, result.DaysOverdue)
	require.NotNil(t, result.Payment)
}

func TestStatus_PaidIsCurrentRegardlessOfDate(t *testing.T) {
	ctx := context.Background()
	lease := testLease("2024-05-01", "2024-12-01", 1)
	mem := scheduled(t, lease)

	current, err := mem.CurrentPeriodPayment(ctx, lease.TenantID, date("2024-05-20"))
	require.NoError(t, err)
	require.NotNil(t, current)
	require.NoError(t, mem.RecordPayment(ctx, rent.PaymentRecord{
		PaymentID:   current.ID,
		AmountPaid:  dec("1200"),
		PaymentDate: date("2024-05-03"),
	}))

	result := rent.NewStatusEvaluator(mem, nil).EvaluateAt(ctx, lease, date("2024-05-20"))
	assert.Equal(t, rent.StatusCurrent, result.Status)
	assert.Nil(t, result.DaysOverdue)
	require.NotNil(t, result.Payment)
	assert.True(t, result.Payment.IsPaid())
}

func TestStatus_PeriodStartedLastMonth(t *testing.T) {
	// Due on the 20th; on June 5 the current period is May 20 - June 20.
	lease := testLease("2024-05-20", "2024-12-20", 20)
	result := rent.NewStatusEvaluator(scheduled(t, lease), nil).
		EvaluateAt(context.Background(), lease, date("2024-06-05"))

	assert.Equal(t, rent.StatusOverdue, result.Status)
	assert.Equal(t, 16, *result.DaysOverdue)
	assert.Equal(t, "2024-05-20", result.Payment.PeriodStart.String())
}

func TestStatus_NoScheduleIsCurrent(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	result := rent.NewStatusEvaluator(store.NewMemory(), nil).
		EvaluateAt(context.Background(), lease, date("2024-06-15"))

	assert.Equal(t, rent.StatusCurrent, result.Status)
	assert.Nil(t, result.Payment)
}

func TestStatus_LeaseNotStartedIsCurrent(t *testing.T) {
	lease := testLease("2024-09-01", "2025-09-01", 1)
	result := rent.NewStatusEvaluator(scheduled(t, lease), nil).
		EvaluateAt(context.Background(), lease, date("2024-08-15"))

	assert.Equal(t, rent.StatusCurrent, result.Status)
	assert.Nil(t, result.Payment)
}

func TestStatus_GatewayErrorDegradesToCurrent(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	result := rent.NewStatusEvaluator(brokenGateway{}, nil).
		EvaluateAt(context.Background(), lease, date("2024-06-15"))

	assert.Equal(t, rent.RentStatusResult{Status: rent.StatusCurrent}, result)
}

func TestStatus_UnavailableStoreDegradesToCurrent(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	mem := scheduled(t, lease)
	mem.SetCapability(rent.CapabilityUnavailable)

	result := rent.NewStatusEvaluator(mem, nil).EvaluateAt(context.Background(), lease, date("2024-06-15"))
	assert.Equal(t, rent.StatusCurrent, result.Status)
}

func TestStatus_Idempotent(t *testing.T) {
	lease := testLease("2024-06-14", "2024-12-14", 14)
	se := rent.NewStatusEvaluator(scheduled(t, lease), nil)
	se.Clock = clockAt("2024-07-20")

	first := se.Evaluate(context.Background(), lease)
	second := se.Evaluate(context.Background(), lease)
	assert.Equal(t, first, second)
	assert.Equal(t, 6, *first.DaysOverdue)
}

func TestClassify(t *testing.T) {
	p := rent.RentPayment{Status: rent.PaymentPending}
	p.DueDate = date("2024-03-01")

	assert.Equal(t, rent.StatusCurrent, rent.Classify(p, date("2024-02-28")).Status)
	assert.Equal(t, rent.StatusCurrent, rent.Classify(p, date("2024-03-01")).Status)

	overdue := rent.Classify(p, date("2024-04-01"))
	assert.Equal(t, rent.StatusOverdue, overdue.Status)
	assert.Equal(t, 31, *overdue.DaysOverdue)

	p.Status = rent.PaymentPaid
	assert.Equal(t, rent.StatusCurrent, rent.Classify(p, date("2024-04-01")).Status)
}

// =============================================================================
// CURRENT PERIOD SELECTION
// =============================================================================

func TestSelectCurrentPeriod(t *testing.T) {
	periods, err := rent.GeneratePaymentPeriods(date("2024-01-20"), date("2024-05-01"), dec("1000"), 1, rent.FrequencyMonthly)
	require.NoError(t, err)
	payments := make([]rent.RentPayment, len(periods))
	for i, p := range periods {
		payments[i] = rent.RentPayment{ID: rent.PaymentID(p.PeriodStart.String()), BillingPeriod: p}
	}

	tests := []struct {
		name  string
		today string
		want  string
	}{
		{"stub period", "2024-01-25", "2024-01-20"},
		{"full period", "2024-03-31", "2024-03-01"},
		{"first day of a period", "2024-02-01", "2024-02-01"},
		{"before lease in the same month", "2024-01-05", "2024-01-20"},
		{"after lease", "2024-06-15", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rent.SelectCurrentPeriod(payments, date(tt.today))
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, string(got.ID))
		})
	}
}
