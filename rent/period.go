package rent

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD GENERATION - Lease date range to ordered billing periods
// =============================================================================

// proRateTolerance is how many days short of a full month a period may be
// and still bill the full monthly rent. It absorbs the off-by-one at month
// boundaries (e.g. Jan 2 to Feb 1 is 30 days of a 31-day month).
const proRateTolerance = 1

var minimumCharge = decimal.New(1, -2)

// GeneratePaymentPeriods walks [start, end) and returns the billing periods
// of a lease in chronological order.
//
//   - The first period starts on start, even when start is not the due day.
//   - Every later period starts on the due day (the previous period's end).
//   - A period ends on the due day of the following month, clipped to end.
//   - A period more than one day shorter than its starting month is
//     pro-rated with CalculateProRation; otherwise it bills monthlyRent.
//
// Nothing is persisted. An end on or before start yields no periods.
// Only monthly frequency is generated.
func GeneratePaymentPeriods(start, end Date, monthlyRent decimal.Decimal, rentDueDay int, freq Frequency) ([]BillingPeriod, error) {
	if freq == "" {
		freq = FrequencyMonthly
	}
	if freq != FrequencyMonthly {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrequency, freq)
	}
	if !end.After(start) {
		return []BillingPeriod{}, nil
	}

	periods := make([]BillingPeriod, 0, estimatePeriods(start, end))
	cursor := start
	for cursor.Before(end) {
		periodStart := cursor
		periodEnd := AnchorInMonth(periodStart.Year(), periodStart.Month()+1, rentDueDay)
		if periodEnd.After(end) {
			periodEnd = end
		}
		periods = append(periods, billPeriod(periodStart, periodEnd, monthlyRent))
		cursor = periodEnd
	}
	return periods, nil
}

// billPeriod prices a single [start, end) period.
func billPeriod(start, end Date, monthlyRent decimal.Decimal) BillingPeriod {
	p := BillingPeriod{
		PeriodStart: start,
		PeriodEnd:   end,
		DueDate:     start,
		AmountDue:   monthlyRent,
	}
	days := DaysBetween(start, end)
	if start.DaysInMonth()-days > proRateTolerance {
		amount, n := CalculateProRation(monthlyRent, start, end)
		if monthlyRent.IsPositive() && !amount.IsPositive() {
			// a day of a very small rent can round to zero cents
			amount = minimumCharge
		}
		p.AmountDue = amount
		p.IsProRated = true
		p.ProRateDays = &n
	}
	return p
}

func estimatePeriods(start, end Date) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	if months < 1 {
		return 1
	}
	return months
}

// =============================================================================
// PERIOD HELPERS
// =============================================================================

// TotalDue sums AmountDue over periods.
func TotalDue(periods []BillingPeriod) decimal.Decimal {
	total := decimal.Zero
	for _, p := range periods {
		total = total.Add(p.AmountDue)
	}
	return total
}

// PeriodContaining returns the index of the period covering d, or -1.
func PeriodContaining(periods []BillingPeriod, d Date) int {
	for i, p := range periods {
		if d.AfterOrEqual(p.PeriodStart) && d.Before(p.PeriodEnd) {
			return i
		}
	}
	return -1
}
