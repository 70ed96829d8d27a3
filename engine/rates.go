/*
rates.go - Interest rate sources

PURPOSE:
  Provides the per-day interest rate consumed by the simulator. Two sources
  exist: a fixed daily rate for automatic overdue penalties, and a registry of
  regulator-published annual rates for late-submission penalties.

REFERENCE DATE RULE:
  The late-submission rate is a prime+3% rate the regulator publishes
  quarterly, applied retroactively using a lagging reference date rather than
  the accrual date itself:

    accrual month {1,2,3}   -> Dec 15 of the prior year
    accrual month {4,5,6}   -> Mar 15 same year
    accrual month {7,8,9}   -> Jun 15 same year
    accrual month {10,11,12}-> Sep 15 same year

  The registry looks up the rate period containing the reference date, then
  divides the annual rate by the day count of the ACCRUAL year (366 on leap
  years).

DATA LOADING:
  Rate periods must be contiguous and non-overlapping. That is the loader's
  responsibility (factory package); the registry only reports RateNotFound
  when a gap is hit.

SEE ALSO:
  - simulator.go: Consumes RateSource day by day
  - factory/rates.go: Validated loading of rate periods
*/
package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE SOURCE - Interface the simulator draws rates from
// =============================================================================

// RateSource yields the daily interest rate applied on a calendar day.
type RateSource interface {
	DailyRate(d Date) (decimal.Decimal, error)
}

// FixedDailyRate applies the same rate every day, e.g. the statutory
// 0.38%/day automatic overdue rate.
type FixedDailyRate struct {
	Rate decimal.Decimal
}

func (f FixedDailyRate) DailyRate(Date) (decimal.Decimal, error) {
	return f.Rate, nil
}

// =============================================================================
// RATE PERIOD - A non-overlapping date range with an annual rate
// =============================================================================

type RatePeriod struct {
	Start      Date
	End        Date
	AnnualRate decimal.Decimal
}

// Contains reports whether d falls in [Start, End].
func (p RatePeriod) Contains(d Date) bool {
	return p.Start.BeforeOrEqual(d) && d.BeforeOrEqual(p.End)
}

// =============================================================================
// REGISTRY - Quarter-lagged annual rate lookup
// =============================================================================

// Registry resolves a daily rate through the quarter-lag reference rule.
// The rate table can be swapped at runtime when the regulator publishes a
// new quarter; lookups are otherwise pure.
type Registry struct {
	mu      sync.RWMutex
	periods []RatePeriod
}

func NewRegistry(periods []RatePeriod) *Registry {
	return &Registry{periods: periods}
}

// Periods returns the loaded rate table.
func (r *Registry) Periods() []RatePeriod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RatePeriod, len(r.periods))
	copy(out, r.periods)
	return out
}

// Replace swaps the rate table. The caller owns validation; see the factory
// package loader.
func (r *Registry) Replace(periods []RatePeriod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods = periods
}

// DailyRate implements RateSource. The annual rate is taken from the period
// containing d's reference date and spread over d's own calendar year.
func (r *Registry) DailyRate(d Date) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref := ReferenceDateFor(d)
	for _, p := range r.periods {
		if p.Contains(ref) {
			days := decimal.NewFromInt(int64(DaysInYear(d.Year())))
			return p.AnnualRate.Div(days), nil
		}
	}
	return decimal.Zero, &RateNotFoundError{Date: d, Reference: ref}
}

// ReferenceDateFor maps an accrual date to the fixed lagging date used for
// the quarterly rate lookup.
func ReferenceDateFor(d Date) Date {
	switch d.Month() {
	case time.January, time.February, time.March:
		return NewDate(d.Year()-1, time.December, 15)
	case time.April, time.May, time.June:
		return NewDate(d.Year(), time.March, 15)
	case time.July, time.August, time.September:
		return NewDate(d.Year(), time.June, 15)
	default:
		return NewDate(d.Year(), time.September, 15)
	}
}
