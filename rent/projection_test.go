package rent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/rent/store"
)

func TestProject_FromDateOnwards(t *testing.T) {
	lease := testLease("2024-01-20", "2024-07-01", 1)
	cp := rent.NewCashFlowProjector(scheduled(t, lease), nil)

	entries := cp.Project(context.Background(), lease.TenantID, date("2024-03-01"), nil)

	require.Len(t, entries, 4)
	assert.Equal(t, "2024-03-01", entries[0].DueDate.String())
	assert.Equal(t, "2024-06-01", entries[3].DueDate.String())
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].DueDate.Before(entries[i].DueDate))
	}
	for _, e := range entries {
		assert.Equal(t, rent.PaymentPending, e.Status)
	}
}

func TestProject_BoundedWindowIsInclusive(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	cp := rent.NewCashFlowProjector(scheduled(t, lease), nil)
	to := date("2024-05-01")

	entries := cp.Project(context.Background(), lease.TenantID, date("2024-02-01"), &to)

	require.Len(t, entries, 4)
	assert.Equal(t, "2024-02-01", entries[0].DueDate.String())
	assert.Equal(t, "2024-05-01", entries[3].DueDate.String())
}

func TestProject_DefaultsToToday(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	cp := rent.NewCashFlowProjector(scheduled(t, lease), nil)
	cp.Clock = clockAt("2024-10-15")

	entries := cp.Project(context.Background(), lease.TenantID, rent.Date{}, nil)

	require.Len(t, entries, 2)
	assert.Equal(t, "2024-11-01", entries[0].DueDate.String())
}

func TestProject_ReflectsPaidStatus(t *testing.T) {
	ctx := context.Background()
	lease := testLease("2024-01-01", "2024-04-01", 1)
	mem := scheduled(t, lease)
	payments, err := mem.PaymentsForTenant(ctx, lease.TenantID)
	require.NoError(t, err)
	require.NoError(t, mem.RecordPayment(ctx, rent.PaymentRecord{
		PaymentID: payments[0].ID, AmountPaid: dec("1200"), PaymentDate: date("2024-01-02"),
	}))

	entries := rent.NewCashFlowProjector(mem, nil).Project(ctx, lease.TenantID, date("2024-01-01"), nil)
	require.Len(t, entries, 3)
	assert.Equal(t, rent.PaymentPaid, entries[0].Status)

	summary := rent.Summarize(entries)
	assert.Equal(t, 3, summary.Periods)
	assert.Equal(t, "3600.00", summary.Scheduled.StringFixed(2))
	assert.Equal(t, "2400.00", summary.Outstanding.StringFixed(2))
}

func TestProject_Idempotent(t *testing.T) {
	lease := testLease("2024-01-01", "2025-01-01", 1)
	cp := rent.NewCashFlowProjector(scheduled(t, lease), nil)

	first := cp.Project(context.Background(), lease.TenantID, date("2024-06-01"), nil)
	second := cp.Project(context.Background(), lease.TenantID, date("2024-06-01"), nil)
	assert.Equal(t, first, second)
}

func TestProject_DegradesToEmpty(t *testing.T) {
	entries := rent.NewCashFlowProjector(brokenGateway{}, nil).
		Project(context.Background(), "ten-0001", date("2024-01-01"), nil)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	mem := store.NewMemory()
	mem.SetCapability(rent.CapabilityUnavailable)
	entries = rent.NewCashFlowProjector(mem, nil).Project(context.Background(), "ten-0001", date("2024-01-01"), nil)
	assert.Empty(t, entries)
}
