/*
kind.go - The closed set of penalty kinds

PURPOSE:
  Each penalty kind carries its own trigger-date rule, compounding mode, and
  rate source, selected ONCE at orchestration entry. The simulator never
  branches on kind.

KINDS:
  AutomaticOverdue:
    - Trigger: the obligation invoice's due date (accrual starts the day after)
    - Rate: fixed statutory 0.38% per day
    - Compounding: DAILY

  LateSubmission:
    - Eligible only when the obligation was submitted after its compliance
      deadline
    - Trigger: the compliance deadline
    - Rate: regulator-published annual rate via the quarter-lagged registry
    - Compounding: MONTHLY

  A supplementary obligation can hold both penalties at once; they are
  independent rows driven by different trigger dates.
*/
package penalty

import (
	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
)

type Kind string

const (
	KindAutomaticOverdue Kind = "automatic_overdue"
	KindLateSubmission   Kind = "late_submission"
)

// DefaultOverdueDailyRate is the statutory automatic-overdue rate: 0.38%/day.
var DefaultOverdueDailyRate = engine.MustDecimal("0.0038")

// kindRule bundles everything a kind decides: when accrual starts, how it
// compounds, and where the daily rate comes from.
type kindRule struct {
	kind        Kind
	compounding engine.CompoundingMode
	frequency   Frequency
	rates       engine.RateSource

	// trigger returns the exclusive accrual start date.
	trigger func(ob *Obligation, inv *ledger.Invoice) engine.Date

	// eligible reports whether this kind applies to the obligation at all.
	eligible func(ob *Obligation) bool

	// displayRate picks the charge rate reported in the Result.
	displayRate func(sim *engine.Simulation) decimal.Decimal
}

func (s *CalculationService) ruleFor(kind Kind) kindRule {
	switch kind {
	case KindLateSubmission:
		return kindRule{
			kind:        KindLateSubmission,
			compounding: engine.CompoundMonthly,
			frequency:   FrequencyMonthly,
			rates:       s.Rates,
			trigger: func(ob *Obligation, _ *ledger.Invoice) engine.Date {
				return ob.ComplianceDeadline
			},
			eligible: func(ob *Obligation) bool {
				return ob.CreatedAt.After(ob.ComplianceDeadline)
			},
			displayRate: func(sim *engine.Simulation) decimal.Decimal {
				if n := len(sim.Entries); n > 0 {
					return sim.Entries[n-1].Rate
				}
				return decimal.Zero
			},
		}
	default:
		rate := s.OverdueDailyRate
		if rate.IsZero() {
			rate = DefaultOverdueDailyRate
		}
		return kindRule{
			kind:        KindAutomaticOverdue,
			compounding: engine.CompoundDaily,
			frequency:   FrequencyDaily,
			rates:       engine.FixedDailyRate{Rate: rate},
			trigger: func(_ *Obligation, inv *ledger.Invoice) engine.Date {
				return inv.DueDate
			},
			eligible: func(*Obligation) bool { return true },
			displayRate: func(*engine.Simulation) decimal.Decimal {
				return rate
			},
		}
	}
}
