package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store"
	"github.com/warp/rent-engine/store/sqldb"
)

const probePattern = `SELECT CASE WHEN to_regclass\('rent_payments'\)`

func newMockStore(t *testing.T, attempts int) (*sqldb.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	policy := store.RetryPolicy{Attempts: attempts, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	return Wrap(db, sqldb.WithRetry(policy)), mock
}

func expectProbe(mock sqlmock.Sqlmock, present int) {
	mock.ExpectQuery(probePattern).WillReturnRows(sqlmock.NewRows([]string{"present"}).AddRow(present))
}

func periods(t *testing.T) []rent.BillingPeriod {
	t.Helper()
	p, err := rent.GeneratePaymentPeriods(
		rent.MustParseDate("2024-03-01"), rent.MustParseDate("2024-05-01"),
		decimal.NewFromInt(900), 1, rent.FrequencyMonthly)
	require.NoError(t, err)
	return p
}

func TestDialect_ClassifiesPgErrors(t *testing.T) {
	d := Dialect{}
	assert.True(t, d.IsMissingTable(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, d.IsUniqueViolation(fmtWrap(&pgconn.PgError{Code: "23505"})))
	assert.False(t, d.IsMissingTable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, d.IsUniqueViolation(errors.New("duplicate key")))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", d.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
}

func fmtWrap(err error) error { return &rent.WriteError{Op: "insert", Err: err} }

func TestCapability_ProbeIsCached(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	expectProbe(mock, 0)

	assert.Equal(t, rent.CapabilityUnavailable, st.Capability(ctx))

	// no query reaches the database once the tables are known missing
	payments, err := st.PaymentsForTenant(ctx, "ten-1")
	require.NoError(t, err)
	assert.Empty(t, payments)
	err = st.InsertPeriods(ctx, "ten-1", "prop-1", periods(t), rent.FrequencyMonthly)
	assert.ErrorIs(t, err, rent.ErrStoreUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCapability_FailedProbeNotCached(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	mock.ExpectQuery(probePattern).WillReturnError(errors.New("connection refused"))
	expectProbe(mock, 1)

	assert.Equal(t, rent.CapabilityUnavailable, st.Capability(ctx))
	assert.Equal(t, rent.CapabilityAvailable, st.Capability(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentsForTenant_UndefinedTableDegrades(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	expectProbe(mock, 1)
	mock.ExpectQuery(`FROM rent_payments WHERE tenant_id = \$1`).
		WithArgs("ten-1").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "rent_payments" does not exist`})

	payments, err := st.PaymentsForTenant(ctx, "ten-1")
	require.NoError(t, err)
	assert.NotNil(t, payments)
	assert.Empty(t, payments)
	assert.Equal(t, rent.CapabilityUnavailable, st.Capability(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentsForTenant_OtherErrorsSurface(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	expectProbe(mock, 1)
	mock.ExpectQuery(`FROM rent_payments`).WillReturnError(sql.ErrConnDone)

	_, err := st.PaymentsForTenant(ctx, "ten-1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, rent.CapabilityAvailable, st.Capability(ctx))
}

func TestInsertPeriods_UniqueViolationIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 3)
	expectProbe(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rent_payments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rent_payments`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := st.InsertPeriods(ctx, "ten-1", "prop-1", periods(t), rent.FrequencyMonthly)
	assert.ErrorIs(t, err, rent.ErrDuplicatePeriod)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPeriods_TransientErrorRetried(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 3)
	expectProbe(mock, 1)

	// GIVEN: the first transaction loses its connection
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rent_payments`).WillReturnError(errors.New("read: connection reset by peer"))
	mock.ExpectRollback()

	// WHEN: the retry runs the whole batch again
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO rent_payments .* VALUES \(\$1, \$2`).
		WithArgs(sqlmock.AnyArg(), "ten-1", "prop-1", "monthly", "2024-03-01", "2024-04-01", "2024-03-01",
			sqlmock.AnyArg(), false, nil, "pending", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO rent_payments`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// THEN
	require.NoError(t, st.InsertPeriods(ctx, "ten-1", "prop-1", periods(t), rent.FrequencyMonthly))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_AlreadyPaid(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 3)
	expectProbe(mock, 1)
	mock.ExpectExec(`UPDATE rent_payments .* WHERE id = \$8 AND status = \$9`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM rent_payments WHERE id = \$1`).
		WithArgs("pay-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("paid"))

	err := st.RecordPayment(ctx, rent.PaymentRecord{
		PaymentID:   "pay-1",
		AmountPaid:  decimal.NewFromInt(900),
		PaymentDate: rent.MustParseDate("2024-03-02"),
	})
	assert.ErrorIs(t, err, rent.ErrAlreadyPaid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPayment_NotFound(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	expectProbe(mock, 1)
	mock.ExpectExec(`UPDATE rent_payments`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM rent_payments`).WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := st.RecordPayment(ctx, rent.PaymentRecord{PaymentID: "nope", AmountPaid: decimal.NewFromInt(1), PaymentDate: rent.MustParseDate("2024-03-02")})
	assert.ErrorIs(t, err, rent.ErrPaymentNotFound)
}

func TestFutureCashFlow_BindsWindow(t *testing.T) {
	ctx := context.Background()
	st, mock := newMockStore(t, 1)
	expectProbe(mock, 1)

	from, to := rent.MustParseDate("2024-03-01"), rent.MustParseDate("2024-06-30")
	rows := sqlmock.NewRows([]string{"period_start", "period_end", "due_date", "amount_due", "status"}).
		AddRow(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "900.00", "paid").
		AddRow("2024-04-01", "2024-05-01", "2024-04-01", "900.00", "pending")
	mock.ExpectQuery(`WHERE tenant_id = \$1 AND due_date >= \$2 AND due_date <= \$3 ORDER BY due_date ASC`).
		WithArgs("ten-1", "2024-03-01", "2024-06-30").
		WillReturnRows(rows)

	entries, err := st.FutureCashFlow(ctx, "ten-1", from, &to)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2024-03-01", entries[0].DueDate.String())
	assert.Equal(t, rent.PaymentPaid, entries[0].Status)
	assert.Equal(t, "2024-04-01", entries[1].PeriodStart.String())
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(900)))
	require.NoError(t, mock.ExpectationsWereMet())
}
