package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store"
)

// =============================================================================
// PAYMENT ROWS (rent.Gateway)
// =============================================================================

var paymentColumns = []string{
	"id", "tenant_id", "property_id", "payment_frequency",
	"period_start", "period_end", "due_date", "amount_due", "is_pro_rated", "pro_rate_days",
	"status", "amount_paid", "payment_date", "payment_method", "payment_reference", "notes",
	"invoice_number", "invoice_generated_at", "created_at", "updated_at",
}

func selectPayments(alias string) string {
	cols := make([]string, len(paymentColumns))
	for i, c := range paymentColumns {
		if alias != "" {
			c = alias + "." + c
		}
		cols[i] = c
	}
	return strings.Join(cols, ", ")
}

// InsertPeriods stores periods as pending payments in one transaction.
func (s *Store) InsertPeriods(ctx context.Context, tenantID rent.TenantID, propertyID rent.PropertyID, periods []rent.BillingPeriod, freq rent.Frequency) error {
	if !s.available(ctx) {
		return rent.ErrStoreUnavailable
	}
	if len(periods) == 0 {
		return nil
	}
	if freq == "" {
		freq = rent.FrequencyMonthly
	}

	return store.Do(ctx, s.retry, s.logger, "insert_periods", func() error {
		return s.insertPeriods(ctx, tenantID, propertyID, periods, freq)
	})
}

func (s *Store) insertPeriods(ctx context.Context, tenantID rent.TenantID, propertyID rent.PropertyID, periods []rent.BillingPeriod, freq rent.Frequency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rent_payments
		(id, tenant_id, property_id, payment_frequency, period_start, period_end, due_date,
		 amount_due, is_pro_rated, pro_rate_days, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := s.timestamp()
	for _, p := range periods {
		var days sql.NullInt64
		if p.ProRateDays != nil {
			days = sql.NullInt64{Int64: int64(*p.ProRateDays), Valid: true}
		}
		_, err := s.exec(ctx, tx, query,
			uuid.NewString(),
			string(tenantID),
			string(propertyID),
			string(freq),
			p.PeriodStart,
			p.PeriodEnd,
			p.DueDate,
			p.AmountDue,
			p.IsProRated,
			days,
			string(rent.PaymentPending),
			now,
			now,
		)
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return rent.ErrDuplicatePeriod
			}
			if s.dialect.IsMissingTable(err) {
				s.markUnavailable()
				return rent.ErrStoreUnavailable
			}
			return fmt.Errorf("failed to insert period %s: %w", p.PeriodStart, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit periods: %w", err)
	}
	return nil
}

// PaymentsForTenant returns the tenant's payments ordered by due date.
func (s *Store) PaymentsForTenant(ctx context.Context, tenantID rent.TenantID) ([]rent.RentPayment, error) {
	if !s.available(ctx) {
		return []rent.RentPayment{}, nil
	}
	payments, err := s.queryPayments(ctx,
		"SELECT "+selectPayments("")+" FROM rent_payments WHERE tenant_id = ? ORDER BY due_date ASC",
		string(tenantID),
	)
	if err != nil {
		if s.degrade("payments_for_tenant", err) {
			return []rent.RentPayment{}, nil
		}
		return nil, err
	}
	return payments, nil
}

// CurrentPeriodPayment returns the payment overlapping today's calendar
// month, preferring the one that contains today.
func (s *Store) CurrentPeriodPayment(ctx context.Context, tenantID rent.TenantID, today rent.Date) (*rent.RentPayment, error) {
	if !s.available(ctx) {
		return nil, nil
	}
	monthStart := today.StartOfMonth()
	nextMonth := rent.AnchorInMonth(monthStart.Year(), monthStart.Month()+1, 1)

	payments, err := s.queryPayments(ctx,
		"SELECT "+selectPayments("")+` FROM rent_payments
		WHERE tenant_id = ? AND period_start < ? AND period_end > ?
		ORDER BY due_date ASC`,
		string(tenantID), nextMonth, monthStart,
	)
	if err != nil {
		if s.degrade("current_period_payment", err) {
			return nil, nil
		}
		return nil, err
	}
	return rent.SelectCurrentPeriod(payments, today), nil
}

// RecordPayment marks a pending payment paid. A paid payment is never
// updated again.
func (s *Store) RecordPayment(ctx context.Context, rec rent.PaymentRecord) error {
	if !s.available(ctx) {
		return rent.ErrStoreUnavailable
	}
	return store.Do(ctx, s.retry, s.logger, "record_payment", func() error {
		res, err := s.exec(ctx, s.db, `
			UPDATE rent_payments
			SET status = ?, amount_paid = ?, payment_date = ?, payment_method = ?,
			    payment_reference = ?, notes = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(rent.PaymentPaid),
			rec.AmountPaid,
			rec.PaymentDate,
			nullString(rec.PaymentMethod),
			nullString(rec.PaymentReference),
			nullString(rec.Notes),
			s.timestamp(),
			string(rec.PaymentID),
			string(rent.PaymentPending),
		)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		return s.explainNoUpdate(ctx, rec.PaymentID)
	})
}

// explainNoUpdate tells apart a missing payment from a paid one.
func (s *Store) explainNoUpdate(ctx context.Context, id rent.PaymentID) error {
	var status string
	err := s.queryRow(ctx, "SELECT status FROM rent_payments WHERE id = ?", string(id)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return rent.ErrPaymentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load payment status: %w", err)
	}
	if rent.PaymentStatus(status) == rent.PaymentPaid {
		return rent.ErrAlreadyPaid
	}
	return fmt.Errorf("payment %s was not updated", id)
}

// FutureCashFlow returns periods due in [from, to], ascending.
func (s *Store) FutureCashFlow(ctx context.Context, tenantID rent.TenantID, from rent.Date, to *rent.Date) ([]rent.CashFlowEntry, error) {
	entries := []rent.CashFlowEntry{}
	if !s.available(ctx) {
		return entries, nil
	}

	query := `
		SELECT period_start, period_end, due_date, amount_due, status
		FROM rent_payments
		WHERE tenant_id = ? AND due_date >= ?`
	args := []any{string(tenantID), from}
	if to != nil {
		query += " AND due_date <= ?"
		args = append(args, *to)
	}
	query += " ORDER BY due_date ASC"

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		if s.degrade("future_cash_flow", err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to query cash flow: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e rent.CashFlowEntry
		var status string
		if err := rows.Scan(&e.PeriodStart, &e.PeriodEnd, &e.DueDate, &e.Amount, &status); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow row: %w", err)
		}
		e.Status = rent.PaymentStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PaymentForInvoice loads a payment with its tenant name and property
// address. A missing payment is (nil, nil).
func (s *Store) PaymentForInvoice(ctx context.Context, paymentID rent.PaymentID) (*rent.InvoicePayment, error) {
	if !s.available(ctx) {
		return nil, nil
	}

	rows, err := s.query(ctx, "SELECT "+selectPayments("rp")+`,
			COALESCE(t.name, ''), COALESCE(p.address, '')
		FROM rent_payments rp
		LEFT JOIN tenants t ON t.id = rp.tenant_id
		LEFT JOIN properties p ON p.id = rp.property_id
		WHERE rp.id = ?`,
		string(paymentID),
	)
	if err != nil {
		if s.degrade("payment_for_invoice", err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load payment for invoice: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var out rent.InvoicePayment
	p, err := scanPayment(rows, &out.TenantName, &out.PropertyAddress)
	if err != nil {
		return nil, err
	}
	out.Payment = p
	return &out, nil
}

// StampInvoice writes the invoice number and generation time, replacing
// any earlier number.
func (s *Store) StampInvoice(ctx context.Context, paymentID rent.PaymentID, number string, generatedAt time.Time) error {
	if !s.available(ctx) {
		return rent.ErrStoreUnavailable
	}
	return store.Do(ctx, s.retry, s.logger, "stamp_invoice", func() error {
		res, err := s.exec(ctx, s.db, `
			UPDATE rent_payments
			SET invoice_number = ?, invoice_generated_at = ?, updated_at = ?
			WHERE id = ?`,
			number, generatedAt.UTC(), s.timestamp(), string(paymentID),
		)
		if err != nil {
			return fmt.Errorf("failed to stamp invoice: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return rent.ErrPaymentNotFound
		}
		return nil
	})
}

// CountPending returns the number of pending payments and their total due.
func (s *Store) CountPending(ctx context.Context) (int, decimal.Decimal, error) {
	if !s.available(ctx) {
		return 0, decimal.Zero, nil
	}
	rows, err := s.query(ctx, "SELECT amount_due FROM rent_payments WHERE status = ?", string(rent.PaymentPending))
	if err != nil {
		if s.degrade("count_pending", err) {
			return 0, decimal.Zero, nil
		}
		return 0, decimal.Zero, err
	}
	defer rows.Close()

	n, total := 0, decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return 0, decimal.Zero, err
		}
		n++
		total = total.Add(amount)
	}
	return n, total, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]rent.RentPayment, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []rent.RentPayment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			s.logger.Error("failed to scan payment row", zap.Error(err))
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// scanPayment scans paymentColumns followed by any extra destinations.
func scanPayment(rows *sql.Rows, extra ...any) (rent.RentPayment, error) {
	var (
		p           rent.RentPayment
		freq        string
		status      string
		proRateDays sql.NullInt64
		amountPaid  decimal.NullDecimal
		paymentDate sql.Null[rent.Date]
		method      sql.NullString
		reference   sql.NullString
		notes       sql.NullString
		invoiceNo   sql.NullString
		invoiceAt   sql.NullTime
	)
	dest := []any{
		&p.ID, &p.TenantID, &p.PropertyID, &freq,
		&p.PeriodStart, &p.PeriodEnd, &p.DueDate, &p.AmountDue, &p.IsProRated, &proRateDays,
		&status, &amountPaid, &paymentDate, &method, &reference, &notes,
		&invoiceNo, &invoiceAt, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Frequency = rent.Frequency(freq)
	p.Status = rent.PaymentStatus(status)
	if proRateDays.Valid {
		days := int(proRateDays.Int64)
		p.ProRateDays = &days
	}
	if amountPaid.Valid {
		amount := amountPaid.Decimal
		p.AmountPaid = &amount
	}
	if paymentDate.Valid {
		d := paymentDate.V
		p.PaymentDate = &d
	}
	p.PaymentMethod = method.String
	p.PaymentReference = reference.String
	p.Notes = notes.String
	p.InvoiceNumber = invoiceNo.String
	if invoiceAt.Valid {
		at := invoiceAt.Time.UTC()
		p.InvoiceGeneratedAt = &at
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
