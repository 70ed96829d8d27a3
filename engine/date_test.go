package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/penalty-engine/engine"
)

func TestDate_Comparisons(t *testing.T) {
	a := engine.NewDate(2025, time.March, 10)
	b := engine.NewDate(2025, time.March, 11)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.BeforeOrEqual(a))
	assert.True(t, a.AfterOrEqual(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Next().Equal(b))
}

func TestDate_Arithmetic(t *testing.T) {
	d := engine.NewDate(2025, time.January, 31)

	assert.Equal(t, "2025-02-01", d.AddDays(1).String())
	assert.Equal(t, "2025-03-02", d.AddDays(30).String())
	assert.Equal(t, "2025-02-28", d.AddDays(28).String())
}

func TestDate_ParseRoundTrip(t *testing.T) {
	d, err := engine.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = engine.ParseDate("not-a-date")
	assert.Error(t, err)
}

func TestDate_IsFirstOfMonth(t *testing.T) {
	assert.True(t, engine.NewDate(2025, time.February, 1).IsFirstOfMonth())
	assert.False(t, engine.NewDate(2025, time.February, 2).IsFirstOfMonth())
	assert.True(t, engine.NewDate(2025, time.January, 31).Next().IsFirstOfMonth())
}

func TestDaysBetween(t *testing.T) {
	from := engine.NewDate(2025, time.March, 1)

	assert.Equal(t, 0, engine.DaysBetween(from, from))
	assert.Equal(t, 10, engine.DaysBetween(from, from.AddDays(10)))
	assert.Equal(t, -3, engine.DaysBetween(from, from.AddDays(-3)))

	// Across a leap day
	assert.Equal(t, 2, engine.DaysBetween(engine.NewDate(2024, time.February, 28), engine.NewDate(2024, time.March, 1)))
	assert.Equal(t, 1, engine.DaysBetween(engine.NewDate(2025, time.February, 28), engine.NewDate(2025, time.March, 1)))
}

func TestDaysInYear(t *testing.T) {
	assert.Equal(t, 366, engine.DaysInYear(2024))
	assert.Equal(t, 365, engine.DaysInYear(2025))
	assert.Equal(t, 366, engine.DaysInYear(2000)) // divisible by 400
	assert.Equal(t, 365, engine.DaysInYear(2100)) // divisible by 100 only
}
