package rent

import "github.com/shopspring/decimal"

// CalculateProRation returns the rent owed for [start, end) and the number
// of days it covers.
//
// The daily rate is monthlyRent divided by the real length of the month
// containing start, so a period spanning exactly that month costs exactly
// monthlyRent. The amount is rounded half-up to cents. An empty or
// inverted range is (0, 0).
func CalculateProRation(monthlyRent decimal.Decimal, start, end Date) (decimal.Decimal, int) {
	days := DaysBetween(start, end)
	if days == 0 {
		return decimal.Zero, 0
	}
	monthDays := decimal.NewFromInt(int64(start.DaysInMonth()))
	amount := monthlyRent.Mul(decimal.NewFromInt(int64(days))).Div(monthDays)
	return amount.Round(2), days
}
