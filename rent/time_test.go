package rent_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rent-engine/rent"
)

func TestParseDate(t *testing.T) {
	d, err := rent.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, rent.NewDate(2024, time.February, 29), d)

	d, err = rent.ParseDate("2024-02-29T23:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = rent.ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestAnchorInMonth(t *testing.T) {
	assert.Equal(t, "2024-02-29", rent.AnchorInMonth(2024, time.February, 31).String())
	assert.Equal(t, "2023-02-28", rent.AnchorInMonth(2023, time.February, 30).String())
	assert.Equal(t, "2024-04-30", rent.AnchorInMonth(2024, time.April, 31).String())
	assert.Equal(t, "2025-01-15", rent.AnchorInMonth(2024, 13, 15).String())
	assert.Equal(t, "2024-06-15", rent.AnchorInMonth(2024, time.June, 15).String())
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 29, rent.DaysBetween(date("2024-02-01"), date("2024-03-01")))
	assert.Equal(t, 366, rent.DaysBetween(date("2024-01-01"), date("2025-01-01")))
	assert.Equal(t, 0, rent.DaysBetween(date("2024-03-01"), date("2024-02-01")))
	// spans a US daylight-saving change; dates are UTC so no hour is lost
	assert.Equal(t, 31, rent.DaysBetween(date("2024-03-01"), date("2024-04-01")))
}

func TestDate_JSON(t *testing.T) {
	var body struct {
		Start rent.Date  `json:"start"`
		End   *rent.Date `json:"end"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2024-06-10","end":null}`), &body))
	assert.Equal(t, "2024-06-10", body.Start.String())
	assert.Nil(t, body.End)

	out, err := json.Marshal(body.Start)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-06-10"`, string(out))

	out, err = json.Marshal(rent.Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDate_Scan(t *testing.T) {
	var d rent.Date

	require.NoError(t, d.Scan(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-10", d.String())

	require.NoError(t, d.Scan([]byte("2024-07-01")))
	assert.Equal(t, "2024-07-01", d.String())

	require.NoError(t, d.Scan("2024-08-01 00:00:00+00:00"))
	assert.Equal(t, "2024-08-01", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestToday_UsesClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC) }
	assert.Equal(t, "2024-06-10", rent.Today(clock).String())
}
