package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/penalty-engine/engine"
)

func newTestRegistry() *engine.Registry {
	// Quarterly prime+3% style table covering late 2024 through 2025.
	return engine.NewRegistry([]engine.RatePeriod{
		{Start: engine.NewDate(2024, time.October, 1), End: engine.NewDate(2024, time.December, 31), AnnualRate: engine.MustDecimal("0.0800")},
		{Start: engine.NewDate(2025, time.January, 1), End: engine.NewDate(2025, time.March, 31), AnnualRate: engine.MustDecimal("0.0850")},
		{Start: engine.NewDate(2025, time.April, 1), End: engine.NewDate(2025, time.June, 30), AnnualRate: engine.MustDecimal("0.0875")},
		{Start: engine.NewDate(2025, time.July, 1), End: engine.NewDate(2025, time.September, 30), AnnualRate: engine.MustDecimal("0.0900")},
	})
}

func TestReferenceDateFor_QuarterLag(t *testing.T) {
	tests := []struct {
		accrual  engine.Date
		expected string
	}{
		// Q1 looks back to Dec 15 of the prior year
		{engine.NewDate(2025, time.January, 5), "2024-12-15"},
		{engine.NewDate(2025, time.February, 28), "2024-12-15"},
		{engine.NewDate(2025, time.March, 31), "2024-12-15"},
		// Q2 -> Mar 15
		{engine.NewDate(2025, time.April, 1), "2025-03-15"},
		{engine.NewDate(2025, time.June, 30), "2025-03-15"},
		// Q3 -> Jun 15
		{engine.NewDate(2025, time.July, 10), "2025-06-15"},
		// Q4 -> Sep 15
		{engine.NewDate(2025, time.October, 1), "2025-09-15"},
		{engine.NewDate(2025, time.December, 31), "2025-09-15"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, engine.ReferenceDateFor(tc.accrual).String(),
			"accrual date %s", tc.accrual)
	}
}

func TestRegistry_DailyRate(t *testing.T) {
	// GIVEN the quarterly table
	reg := newTestRegistry()

	// WHEN resolving a January 2025 accrual day
	rate, err := reg.DailyRate(engine.NewDate(2025, time.January, 20))
	require.NoError(t, err)

	// THEN the rate comes from the Q4-2024 period (Dec 15 reference)
	// spread over 365 days of 2025
	expected := engine.MustDecimal("0.0800").Div(decimal.NewFromInt(365))
	assert.True(t, rate.Equal(expected), "got %s want %s", rate, expected)
}

func TestRegistry_DailyRate_LeapYear(t *testing.T) {
	// GIVEN a period containing Dec 15 2023
	reg := engine.NewRegistry([]engine.RatePeriod{
		{Start: engine.NewDate(2023, time.October, 1), End: engine.NewDate(2023, time.December, 31), AnnualRate: engine.MustDecimal("0.0800")},
	})

	// WHEN resolving an accrual day in leap year 2024
	rate, err := reg.DailyRate(engine.NewDate(2024, time.February, 10))
	require.NoError(t, err)

	// THEN the annual rate is spread over 366 days
	expected := engine.MustDecimal("0.0800").Div(decimal.NewFromInt(366))
	assert.True(t, rate.Equal(expected), "got %s want %s", rate, expected)
}

func TestRegistry_DailyRate_Deterministic(t *testing.T) {
	reg := newTestRegistry()
	d := engine.NewDate(2025, time.May, 5)

	first, err := reg.DailyRate(d)
	require.NoError(t, err)
	second, err := reg.DailyRate(d)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestRegistry_DailyRate_GapIsAnError(t *testing.T) {
	reg := newTestRegistry()

	// 2026 accrual days reference Sep/Dec 2025; Q4 2025 is not loaded.
	_, err := reg.DailyRate(engine.NewDate(2026, time.January, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrRateNotFound))

	var rnf *engine.RateNotFoundError
	require.True(t, errors.As(err, &rnf))
	assert.Equal(t, "2025-12-15", rnf.Reference.String())
}

func TestRegistry_Replace(t *testing.T) {
	reg := newTestRegistry()

	reg.Replace([]engine.RatePeriod{
		{Start: engine.NewDate(2024, time.December, 1), End: engine.NewDate(2024, time.December, 31), AnnualRate: engine.MustDecimal("0.1000")},
	})

	rate, err := reg.DailyRate(engine.NewDate(2025, time.February, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(engine.MustDecimal("0.1000").Div(decimal.NewFromInt(365))))
	assert.Len(t, reg.Periods(), 1)
}

func TestFixedDailyRate(t *testing.T) {
	src := engine.FixedDailyRate{Rate: engine.MustDecimal("0.0038")}

	rate, err := src.DailyRate(engine.NewDate(2025, time.June, 1))
	require.NoError(t, err)
	assert.True(t, rate.Equal(engine.MustDecimal("0.0038")))
}
