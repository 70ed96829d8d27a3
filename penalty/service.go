/*
service.go - Penalty calculation orchestration

PURPOSE:
  Runs the full calculate-and-persist sequence for one obligation:

    1. Refresh the ledger mirror (read-only, outside the transaction)
    2. Select the kind rule: trigger date, rate source, compounding mode
    3. Replay the day-by-day accrual simulation
    4. Apply the 300%-of-principal cap (silent policy clamp)
    5. If finalizing: create the external fee + invoice, then persist the
       penalty, its accrual rows, and the obligation status in ONE transaction
    6. Refresh the mirror again to pick up the newly created invoice

ATOMICITY:
  External invoice creation happens before the local transaction. If it
  fails, nothing is committed locally. If the local transaction fails, the
  external invoice exists but no half-written penalty does - the next run
  recalculates from scratch.

CONCURRENCY:
  The service is invoked synchronously per obligation with no internal
  parallelism. Concurrent finalization of the SAME obligation is not guarded
  here; callers own a per-obligation advisory lock around the sequence.

SEE ALSO:
  - kind.go: trigger/compounding/rate selection
  - engine/simulator.go: the replay loop
  - ledger/mirror.go: refresh and balance queries
*/
package penalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/metrics"
)

// capMultiplier bounds the total penalty at 300% of the principal.
var capMultiplier = decimal.NewFromInt(3)

// CalculationService orchestrates penalty calculation for obligations.
type CalculationService struct {
	Store     Store
	Mirror    *ledger.MirrorService
	Invoicing ledger.ExternalInvoicing
	Rates     *engine.Registry

	// OverdueDailyRate overrides the statutory default when non-zero.
	OverdueDailyRate decimal.Decimal

	Log     *logrus.Logger
	Metrics *metrics.Metrics

	// Now substitutes "today" when an accrual window is unresolved.
	// Defaults to engine.Today; tests pin it.
	Now func() engine.Date
}

func NewCalculationService(store Store, mirror *ledger.MirrorService, invoicing ledger.ExternalInvoicing, rates *engine.Registry, log *logrus.Logger) *CalculationService {
	if log == nil {
		log = logrus.New()
	}
	return &CalculationService{
		Store:     store,
		Mirror:    mirror,
		Invoicing: invoicing,
		Rates:     rates,
		Log:       log,
		Now:       engine.Today,
	}
}

// Options controls a single calculation run.
type Options struct {
	// Finalize persists the penalty and creates the external invoice.
	// When false the run is a dry-run projection.
	Finalize bool

	// AccrualFinal overrides the computed final date (settled date, or today
	// while unresolved).
	AccrualFinal *engine.Date
}

// CalculateOverdue runs the AUTOMATIC_OVERDUE calculation: daily-compounded
// accrual from the day after the obligation invoice's due date.
func (s *CalculationService) CalculateOverdue(ctx context.Context, id ObligationID, opts Options) (*Result, error) {
	return s.calculate(ctx, id, KindAutomaticOverdue, opts)
}

// CalculateLateSubmission runs the LATE_SUBMISSION calculation:
// monthly-compounded accrual from the day after the compliance deadline.
// Returns (nil, nil) when the obligation was submitted on time.
func (s *CalculationService) CalculateLateSubmission(ctx context.Context, id ObligationID, opts Options) (*Result, error) {
	return s.calculate(ctx, id, KindLateSubmission, opts)
}

func (s *CalculationService) calculate(ctx context.Context, id ObligationID, kind Kind, opts Options) (*Result, error) {
	res, err := s.run(ctx, id, kind, opts)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if res == nil {
		outcome = "not_applicable"
	}
	s.Metrics.ObserveCalculation(string(kind), opts.Finalize, outcome)
	return res, err
}

func (s *CalculationService) run(ctx context.Context, id ObligationID, kind Kind, opts Options) (*Result, error) {
	ob, err := s.Store.GetObligation(ctx, id)
	if err != nil {
		return nil, err
	}
	if ob == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrObligationNotFound, id)
	}
	if ob.InvoiceNumber == "" {
		return nil, fmt.Errorf("%w: obligation %s", engine.ErrMissingInvoice, id)
	}

	rule := s.ruleFor(kind)
	if !rule.eligible(ob) {
		return nil, nil
	}

	// Refresh is read-only and idempotent; it stays outside the
	// finalization transaction.
	mirror, err := s.Mirror.Refresh(ctx, ob.ClientRef, ob.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	s.Metrics.ObserveRefresh(mirror.Fresh)

	start := rule.trigger(ob, mirror.Invoice)
	final := s.resolveFinal(ob, mirror, opts)

	sim, err := (&engine.Simulator{
		Balance: ledger.OutstandingBalance{Principal: ob.FeeAmount, Mirror: mirror},
		Rates:   rule.rates,
		Mode:    rule.compounding,
	}).Run(start, final)
	if err != nil {
		return nil, err
	}
	s.Metrics.ObserveSimulation(sim.Days())

	total := sim.TotalPenalty
	if ob.FeeAmount.IsPositive() {
		if cap := ob.FeeAmount.Mul(capMultiplier); total.GreaterThan(cap) {
			total = cap
		}
	}

	res := &Result{
		PenaltyStatus:          ob.PenaltyStatus,
		Kind:                   kind,
		ChargeRatePercent:      engine.RatePercent(rule.displayRate(sim)),
		DaysLate:               sim.Days(),
		AccrualStart:           start,
		AccrualFinal:           final,
		AccumulatedPenalty:     engine.RoundMoney(sim.AccumulatedPenalty),
		AccumulatedCompounding: engine.RoundMoney(sim.AccumulatedCompounding),
		TotalPenalty:           engine.RoundMoney(total),
		FAAInterest:            engine.RoundMoney(mirror.Invoice.InterestBalance),
		DataIsFresh:            mirror.Fresh,
	}
	res.TotalAmount = res.TotalPenalty.Add(res.FAAInterest)

	if !opts.Finalize {
		return res, nil
	}

	p, err := s.finalize(ctx, ob, rule, sim, res)
	if err != nil {
		return nil, err
	}
	res.Penalty = p
	res.PenaltyStatus = StatusNotPaid

	// Pick up the newly created invoice. Best effort: the penalty is already
	// committed, a failed refresh only delays the mirror.
	if _, err := s.Mirror.Refresh(ctx, ob.ClientRef, p.InvoiceNumber); err != nil {
		s.Log.WithError(err).WithField("obligation", ob.ID).
			Warn("post-finalization ledger refresh failed")
	}

	return res, nil
}

// resolveFinal picks the last simulated day: explicit override, the date the
// ledger shows the fee settled, or today while unresolved.
func (s *CalculationService) resolveFinal(ob *Obligation, mirror *ledger.Mirror, opts Options) engine.Date {
	if opts.AccrualFinal != nil {
		return *opts.AccrualFinal
	}
	if settled, ok := mirror.SettledDate(ob.FeeAmount); ok {
		return settled
	}
	now := s.Now
	if now == nil {
		now = engine.Today
	}
	return now()
}

// finalize creates the external fee + invoice, then commits the penalty, its
// accrual rows, and the obligation status in one transaction.
func (s *CalculationService) finalize(ctx context.Context, ob *Obligation, rule kindRule, sim *engine.Simulation, res *Result) (*Penalty, error) {
	p := &Penalty{
		ID:                   PenaltyID(uuid.NewString()),
		ObligationID:         ob.ID,
		Kind:                 rule.kind,
		AccrualStart:         res.AccrualStart,
		AccrualFinal:         res.AccrualFinal,
		AccrualFrequency:     FrequencyDaily,
		CompoundingFrequency: rule.frequency,
		Amount:               res.TotalPenalty,
		Status:               StatusNotPaid,
		CreatedAt:            time.Now().UTC(),
	}

	feeID, err := s.Invoicing.CreateFee(ctx, ob.ClientRef, ledger.FeeRequest{
		Description: fmt.Sprintf("Penalty (%s) for obligation %s", p.Kind, ob.ID),
		Amount:      p.Amount,
		FeeDate:     p.AccrualFinal.AddDays(1),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create fee: %v", engine.ErrInvoiceCreateFailed, err)
	}
	invoiceNumber, err := s.Invoicing.CreateInvoice(ctx, ob.ClientRef, ledger.InvoiceRequest{
		DueDate: p.AccrualFinal.AddDays(30),
		FeeIDs:  []ledger.FeeID{feeID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create invoice: %v", engine.ErrInvoiceCreateFailed, err)
	}
	p.InvoiceNumber = invoiceNumber

	rows := make([]Accrual, len(sim.Entries))
	for i, e := range sim.Entries {
		rows[i] = Accrual{
			ID:                     uuid.NewString(),
			PenaltyID:              p.ID,
			Date:                   e.Date,
			Rate:                   e.Rate,
			DailyPenalty:           engine.RoundMoney(e.DailyPenalty),
			Compounded:             engine.RoundMoney(e.Compounded),
			AccumulatedPenalty:     engine.RoundMoney(e.AccumulatedPenalty),
			AccumulatedCompounding: engine.RoundMoney(e.AccumulatedCompounding),
		}
	}

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.SavePenalty(ctx, p); err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.AppendAccruals(ctx, rows); err != nil {
				return err
			}
		}
		return tx.SetPenaltyStatus(ctx, ob.ID, StatusNotPaid)
	})
	if err != nil {
		return nil, fmt.Errorf("persist penalty for obligation %s: %w", ob.ID, err)
	}

	s.Log.WithFields(logrus.Fields{
		"obligation": ob.ID,
		"penalty":    p.ID,
		"kind":       p.Kind,
		"amount":     p.Amount.StringFixed(2),
		"days":       sim.Days(),
		"invoice":    p.InvoiceNumber,
	}).Info("penalty finalized")

	return p, nil
}
