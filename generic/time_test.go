package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/hospital-ledger/generic"
)

func TestCalendar_DefaultWeekendAndHolidays(t *testing.T) {
	// GIVEN: Default weekend plus a fixed and a recurring holiday
	// WHEN: Filtering Mon 2025-03-03 .. Sun 2025-03-16
	// THEN: Weekends and the two holidays are removed

	cal := generic.NewCalendar(nil, []generic.Holiday{
		{ID: "h1", Date: generic.NewDate(2025, time.March, 5), Name: "Founders Day"},
		{ID: "h2", Date: generic.NewDate(2019, time.March, 12), Name: "Anniversary", Recurring: true},
	})
	r := generic.DateRange{Start: generic.NewDate(2025, time.March, 3), End: generic.NewDate(2025, time.March, 16)}

	days := cal.Workdays(r)
	assert.Len(t, r.Days(), 14)
	assert.Len(t, days, 8)
	for _, d := range days {
		assert.NotEqual(t, time.Saturday, d.Weekday())
		assert.NotEqual(t, time.Sunday, d.Weekday())
	}
	assert.False(t, cal.IsWorkday(generic.NewDate(2025, time.March, 12)))
}

func TestCalendar_CustomWeekend(t *testing.T) {
	cal := generic.NewCalendar([]time.Weekday{time.Friday}, nil)
	assert.False(t, cal.IsWorkday(generic.NewDate(2025, time.March, 7))) // Friday
	assert.True(t, cal.IsWorkday(generic.NewDate(2025, time.March, 8)))  // Saturday
}

func TestDateRange_Validate(t *testing.T) {
	r := generic.DateRange{Start: generic.NewDate(2025, 1, 10), End: generic.NewDate(2025, 1, 9)}
	assert.ErrorIs(t, r.Validate(), generic.ErrValidation)
	assert.Empty(t, r.Days())
}

func TestDate_JSON(t *testing.T) {
	d := generic.NewDate(2025, time.July, 4)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-07-04"`, string(data))

	var back generic.Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(d))

	require.NoError(t, json.Unmarshal([]byte(`"2025-07-04T15:30:00Z"`), &back))
	assert.True(t, back.Equal(d))

	assert.Error(t, json.Unmarshal([]byte(`"July 4"`), &back))
}

func TestParseWeekday(t *testing.T) {
	wd, err := generic.ParseWeekday("fri")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, wd)

	wd, err = generic.ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, wd)

	_, err = generic.ParseWeekday("someday")
	assert.Error(t, err)
}

// =============================================================================
// CURRENCY
// =============================================================================

func TestCurrency_RoundAndFormat(t *testing.T) {
	usd := generic.MustCurrency("USD")
	assert.Equal(t, int32(2), usd.Fraction())
	assert.True(t, usd.Round(decimal.RequireFromString("10.005")).Equal(decimal.RequireFromString("10.01")))
	assert.True(t, usd.IsRounded(decimal.RequireFromString("10.10")))
	assert.False(t, usd.IsRounded(decimal.RequireFromString("10.101")))
	assert.Equal(t, "$1,234.50", usd.Format(decimal.RequireFromString("1234.5")))

	jpy := generic.MustCurrency("JPY")
	assert.Equal(t, int32(0), jpy.Fraction())
	assert.True(t, jpy.Round(decimal.RequireFromString("99.5")).Equal(decimal.NewFromInt(100)))

	_, err := generic.NewCurrency("XXXX")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPercentOf(t *testing.T) {
	assert.True(t, generic.PercentOf(decimal.NewFromInt(90000), decimal.NewFromInt(50)).Equal(decimal.NewFromInt(45000)))
	assert.True(t, generic.ValidPercent(decimal.Zero))
	assert.True(t, generic.ValidPercent(generic.Hundred))
	assert.False(t, generic.ValidPercent(decimal.NewFromInt(101)))
	assert.False(t, generic.ValidPercent(decimal.NewFromInt(-1)))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, generic.IsNotFound(generic.NewNotFound("invoice", "x")))
	assert.True(t, generic.IsClientError(&generic.OverpaymentError{}))
	assert.True(t, generic.IsClientError(&generic.UnbalancedEntryError{}))
	assert.True(t, generic.IsConflict(&generic.DuplicateKeyError{Kind: "account number", Key: "1000"}))
	assert.False(t, generic.IsClientError(&generic.PersistenceError{Op: "read", Err: assert.AnError}))
	assert.ErrorIs(t, &generic.PersistenceError{Op: "read", Err: assert.AnError}, assert.AnError)
}
