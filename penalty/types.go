/*
Package penalty computes financial penalties for emissions-compliance
obligations that are paid late or reported late.

PURPOSE:
  Holds the domain aggregate (Obligation, Penalty, Accrual) and the
  calculation service that orchestrates a penalty run: refresh the ledger
  mirror, replay the accrual simulation, apply the statutory cap, persist the
  result, and create the external invoice when finalizing.

KEY CONCEPTS IN THIS FILE (types.go):
  - Obligation: the compliance debt that can trigger a penalty
  - Penalty: one finalized (or historical) penalty per (obligation, kind)
  - Accrual: one simulated calendar day of a penalty, append-only
  - Result: the aggregate surface consumed by reporting collaborators

DESIGN PRINCIPLES:
  1. Immutability: accrual rows are never mutated; recalculation creates a
     fresh Penalty and the prior one stands as history
  2. Precision: decimal.Decimal end to end, rounded only at this boundary
  3. Replayability: a Penalty plus its Accrual rows fully reproduces the run

SEE ALSO:
  - kind.go: the closed penalty-kind variants
  - service.go: orchestration
*/
package penalty

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ObligationID string
type PenaltyID string

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusNone    Status = "none"
	StatusNotPaid Status = "not_paid"
	StatusPaid    Status = "paid"
)

// =============================================================================
// OBLIGATION - The triggering compliance debt
// =============================================================================

// Obligation is immutable once a Penalty exists for it, except for
// PenaltyStatus.
type Obligation struct {
	ID            ObligationID
	ClientRef     string // account reference in the external billing system
	FeeAmount     decimal.Decimal
	InvoiceNumber ledger.InvoiceNumber

	PenaltyStatus Status

	// CreatedAt is the submission date, compared against the compliance
	// deadline to detect late submission.
	CreatedAt          engine.Date
	ComplianceDeadline engine.Date

	// Supplementary obligations can accrue both penalty kinds independently.
	Supplementary bool
}

// =============================================================================
// PENALTY - One per (obligation, kind); never recomputed in place
// =============================================================================

type Penalty struct {
	ID           PenaltyID
	ObligationID ObligationID
	Kind         Kind

	AccrualStart engine.Date // exclusive trigger date
	AccrualFinal engine.Date // last day simulated

	AccrualFrequency     Frequency
	CompoundingFrequency Frequency

	// Amount is the final capped total, rounded to 2 decimal places.
	Amount decimal.Decimal
	Status Status

	// InvoiceNumber is empty until the penalty is finalized and the external
	// invoice exists.
	InvoiceNumber ledger.InvoiceNumber

	CreatedAt time.Time
}

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyMonthly Frequency = "monthly"
)

// =============================================================================
// ACCRUAL - One simulated calendar day, append-only
// =============================================================================

// Accrual is the persisted form of one simulated day. Scalar fields are
// rounded to 2 decimal places at this boundary; the simulation itself runs
// unrounded.
//
// Invariants:
//   - AccumulatedPenalty[day N] = AccumulatedPenalty[day N-1] + DailyPenalty[day N]
//     (same for compounding)
//   - row count for a Penalty equals DaysBetween(AccrualStart, AccrualFinal)
type Accrual struct {
	ID        string
	PenaltyID PenaltyID

	Date                   engine.Date
	Rate                   decimal.Decimal
	DailyPenalty           decimal.Decimal
	Compounded             decimal.Decimal
	AccumulatedPenalty     decimal.Decimal
	AccumulatedCompounding decimal.Decimal
}

// =============================================================================
// RESULT - Aggregate surface for reporting/UI collaborators
// =============================================================================

// Result combines the simulation totals with external-ledger state. Every
// currency field is rounded to 2 decimal places; ChargeRatePercent is the
// daily rate expressed as a percentage.
type Result struct {
	PenaltyStatus Status
	Kind          Kind

	ChargeRatePercent decimal.Decimal
	DaysLate          int

	AccrualStart engine.Date
	AccrualFinal engine.Date

	AccumulatedPenalty     decimal.Decimal
	AccumulatedCompounding decimal.Decimal
	TotalPenalty           decimal.Decimal

	// FAAInterest is the interest balance reported directly by the external
	// ledger, added on top of the computed penalty.
	FAAInterest decimal.Decimal
	TotalAmount decimal.Decimal

	DataIsFresh bool

	// Penalty is set when the calculation finalized.
	Penalty *Penalty
}
