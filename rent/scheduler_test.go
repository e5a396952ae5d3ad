package rent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/rent/store"
)

func TestCreateSchedule_PersistsPendingPeriodsInOrder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	lease := testLease("2024-01-20", "2024-07-01", 1)

	periods, err := rent.NewScheduler(mem, nil).CreateSchedule(ctx, lease)
	require.NoError(t, err)
	require.Len(t, periods, 6)

	payments, err := mem.PaymentsForTenant(ctx, lease.TenantID)
	require.NoError(t, err)
	require.Len(t, payments, len(periods))
	for i, p := range payments {
		assert.Equal(t, periods[i], p.BillingPeriod)
		assert.Equal(t, rent.PaymentPending, p.Status)
		assert.Equal(t, lease.PropertyID, p.PropertyID)
		assert.Equal(t, rent.FrequencyMonthly, p.Frequency)
		assert.NotEmpty(t, p.ID)
	}
}

func TestCreateSchedule_RetryIsRejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	lease := testLease("2024-01-01", "2025-01-01", 1)
	s := rent.NewScheduler(mem, nil)

	_, err := s.CreateSchedule(ctx, lease)
	require.NoError(t, err)

	_, err = s.CreateSchedule(ctx, lease)
	assert.ErrorIs(t, err, rent.ErrDuplicatePeriod)
	assert.True(t, rent.IsConflict(err))

	payments, err := mem.PaymentsForTenant(ctx, lease.TenantID)
	require.NoError(t, err)
	assert.Len(t, payments, 12)
}

func TestCreateSchedule_InvalidLease(t *testing.T) {
	s := rent.NewScheduler(store.NewMemory(), nil)

	tests := []struct {
		name  string
		edit  func(*rent.Lease)
		field string
	}{
		{"missing tenant", func(l *rent.Lease) { l.TenantID = "" }, "tenant_id"},
		{"end before start", func(l *rent.Lease) { l.End = date("2023-01-01") }, "lease_end"},
		{"negative rent", func(l *rent.Lease) { l.MonthlyRent = dec("-1") }, "monthly_rent"},
		{"due day 29", func(l *rent.Lease) { l.RentDueDay = 29 }, "rent_due_day"},
		{"due day 0", func(l *rent.Lease) { l.RentDueDay = 0 }, "rent_due_day"},
		{"unknown frequency", func(l *rent.Lease) { l.Frequency = "weekly" }, "payment_frequency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lease := testLease("2024-01-01", "2025-01-01", 1)
			tt.edit(&lease)

			_, err := s.CreateSchedule(context.Background(), lease)
			require.ErrorIs(t, err, rent.ErrInvalidLease)
			var ve *rent.LeaseValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, rent.IsClientError(err))
		})
	}
}

func TestCreateSchedule_QuarterlyUnsupported(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	lease.Frequency = rent.FrequencyQuarterly

	_, err := rent.NewScheduler(store.NewMemory(), nil).CreateSchedule(context.Background(), lease)
	assert.ErrorIs(t, err, rent.ErrUnsupportedFrequency)
}

func TestCreateSchedule_UnavailableStore(t *testing.T) {
	mem := store.NewMemory()
	mem.SetCapability(rent.CapabilityUnavailable)

	_, err := rent.NewScheduler(mem, nil).CreateSchedule(context.Background(), testLease("2024-01-01", "2025-01-01", 1))
	assert.ErrorIs(t, err, rent.ErrStoreUnavailable)
	assert.False(t, rent.IsRetryable(err))
}

func TestRecordPayment(t *testing.T) {
	ctx := context.Background()
	lease := testLease("2024-01-01", "2024-04-01", 1)
	mem := scheduled(t, lease)
	s := rent.NewScheduler(mem, nil)
	payments := s.Payments(ctx, lease.TenantID)
	require.Len(t, payments, 3)

	rec := rent.PaymentRecord{
		PaymentID:        payments[1].ID,
		AmountPaid:       dec("1200"),
		PaymentDate:      date("2024-02-03"),
		PaymentMethod:    "bank_transfer",
		PaymentReference: "TX-991",
		Notes:            "paid late",
	}
	require.NoError(t, s.RecordPayment(ctx, rec))

	paid := s.Payments(ctx, lease.TenantID)[1]
	assert.True(t, paid.IsPaid())
	assert.True(t, paid.AmountPaid.Equal(dec("1200")))
	assert.Equal(t, "2024-02-03", paid.PaymentDate.String())
	assert.Equal(t, "bank_transfer", paid.PaymentMethod)
	assert.Equal(t, "TX-991", paid.PaymentReference)
	assert.Equal(t, "paid late", paid.Notes)

	// paid periods cannot be paid again
	err := s.RecordPayment(ctx, rec)
	assert.ErrorIs(t, err, rent.ErrAlreadyPaid)
}

func TestRecordPayment_Validation(t *testing.T) {
	s := rent.NewScheduler(store.NewMemory(), nil)
	ctx := context.Background()

	err := s.RecordPayment(ctx, rent.PaymentRecord{AmountPaid: dec("1"), PaymentDate: date("2024-01-01")})
	assert.ErrorIs(t, err, rent.ErrInvalidPayment)

	err = s.RecordPayment(ctx, rent.PaymentRecord{PaymentID: "p", AmountPaid: dec("0"), PaymentDate: date("2024-01-01")})
	assert.ErrorIs(t, err, rent.ErrInvalidPayment)

	err = s.RecordPayment(ctx, rent.PaymentRecord{PaymentID: "p", AmountPaid: dec("5")})
	assert.ErrorIs(t, err, rent.ErrInvalidPayment)

	err = s.RecordPayment(ctx, rent.PaymentRecord{PaymentID: "p", AmountPaid: dec("5"), PaymentDate: date("2024-01-01")})
	assert.ErrorIs(t, err, rent.ErrPaymentNotFound)
	assert.True(t, rent.IsNotFound(err))
}

func TestPayments_DegradesToEmpty(t *testing.T) {
	payments := rent.NewScheduler(brokenGateway{}, nil).Payments(context.Background(), "ten-0001")
	assert.NotNil(t, payments)
	assert.Empty(t, payments)
}
