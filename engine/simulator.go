/*
simulator.go - Day-by-day penalty accrual simulation

PURPOSE:
  Replays penalty interest accrual over a calendar date range, one day at a
  time, against a principal that changes as ledger payments and adjustments
  land. Two compounding regimes run through the same loop:

  DAILY (automatic overdue):
    Interest accrued so far immediately starts earning interest. Each day the
    compounding base grows by (accumulated penalty + accumulated compounding)
    x that day's rate, while the daily penalty is charged on the outstanding
    principal alone. The final total is penalty + compounding.

  MONTHLY (late submission):
    Daily penalties collect in an uncompounded bucket. On the 1st of each
    month (except the very first simulated day) the bucket folds into the
    compounding base and resets. Interest is then charged on
    outstanding + compounding base. The final total is the accumulated
    penalty alone - the compounding base only widens the daily charge.

DATE SEMANTICS:
  The start date is EXCLUSIVE (accrual begins the day after the trigger:
  invoice due date or compliance deadline). The end date is INCLUSIVE - it is
  the last day simulated. end <= start simulates zero days and yields zero
  totals; that is a valid result, not an error.

PRECISION:
  Every running value is full-precision decimal. Entries carry unrounded
  values; rounding to 2dp happens at the persistence boundary (store, DTOs).

FAILURE:
  A missing rate for any day aborts the whole simulation. Later days depend
  on consistent accumulated state, so skipping a day is never correct.

SEE ALSO:
  - rates.go: RateSource implementations
  - ledger/mirror.go: OutstandingBalance, the production BalanceSource
  - penalty/service.go: Orchestration, cap, persistence
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPOUNDING MODE
// =============================================================================

type CompoundingMode string

const (
	CompoundDaily   CompoundingMode = "daily"
	CompoundMonthly CompoundingMode = "monthly"
)

// =============================================================================
// BALANCE SOURCE - Outstanding principal per day
// =============================================================================

// BalanceSource yields the outstanding principal on a given day, with every
// payment and adjustment effective strictly before that day applied.
type BalanceSource interface {
	OutstandingOn(d Date) decimal.Decimal
}

// ConstantBalance is a BalanceSource with no payments or adjustments.
type ConstantBalance struct {
	Principal decimal.Decimal
}

func (c ConstantBalance) OutstandingOn(Date) decimal.Decimal {
	return c.Principal
}

// =============================================================================
// ACCRUAL ENTRY - One simulated calendar day
// =============================================================================

// AccrualEntry is a single day of a simulation. Values are unrounded.
type AccrualEntry struct {
	Date                   Date
	Rate                   decimal.Decimal // daily rate applied
	DailyPenalty           decimal.Decimal
	Compounded             decimal.Decimal // portion added to the compounding base this day
	AccumulatedPenalty     decimal.Decimal // running sum including this day
	AccumulatedCompounding decimal.Decimal // running sum including this day
}

// Simulation is the ordered result of a run.
type Simulation struct {
	Start   Date // exclusive
	End     Date // inclusive
	Mode    CompoundingMode
	Entries []AccrualEntry

	AccumulatedPenalty     decimal.Decimal
	AccumulatedCompounding decimal.Decimal
	TotalPenalty           decimal.Decimal
}

// Days returns the number of simulated days.
func (s *Simulation) Days() int {
	return len(s.Entries)
}

// =============================================================================
// SIMULATOR
// =============================================================================

// Simulator runs one accrual replay. It is pure: no I/O, no clock reads.
type Simulator struct {
	Balance BalanceSource
	Rates   RateSource
	Mode    CompoundingMode
}

// Run simulates every day from start+1 through end inclusive.
func (s *Simulator) Run(start, end Date) (*Simulation, error) {
	sim := &Simulation{
		Start:                  start,
		End:                    end,
		Mode:                   s.Mode,
		AccumulatedPenalty:     decimal.Zero,
		AccumulatedCompounding: decimal.Zero,
		TotalPenalty:           decimal.Zero,
	}
	if !end.After(start) {
		return sim, nil
	}

	accPenalty := decimal.Zero
	accCompounding := decimal.Zero
	uncompounded := decimal.Zero // MONTHLY: bucket awaiting the next month boundary

	first := start.Next()
	for d := first; d.BeforeOrEqual(end); d = d.Next() {
		rate, err := s.Rates.DailyRate(d)
		if err != nil {
			return nil, err
		}
		outstanding := s.Balance.OutstandingOn(d)

		var daily, compounded decimal.Decimal
		switch s.Mode {
		case CompoundMonthly:
			if d.IsFirstOfMonth() && !d.Equal(first) {
				compounded = uncompounded
				accCompounding = accCompounding.Add(uncompounded)
				uncompounded = decimal.Zero
			} else {
				compounded = decimal.Zero
			}
			principalForInterest := outstanding.Add(accCompounding)
			daily = principalForInterest.Mul(rate)
			accPenalty = accPenalty.Add(daily)
			uncompounded = uncompounded.Add(daily)

		default: // CompoundDaily
			compounded = accPenalty.Add(accCompounding).Mul(rate)
			accCompounding = accCompounding.Add(compounded)
			daily = outstanding.Mul(rate)
			accPenalty = accPenalty.Add(daily)
		}

		sim.Entries = append(sim.Entries, AccrualEntry{
			Date:                   d,
			Rate:                   rate,
			DailyPenalty:           daily,
			Compounded:             compounded,
			AccumulatedPenalty:     accPenalty,
			AccumulatedCompounding: accCompounding,
		})
	}

	sim.AccumulatedPenalty = accPenalty
	sim.AccumulatedCompounding = accCompounding
	if s.Mode == CompoundMonthly {
		sim.TotalPenalty = accPenalty
	} else {
		sim.TotalPenalty = accPenalty.Add(accCompounding)
	}
	return sim, nil
}
