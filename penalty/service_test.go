package penalty_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/penalty"
	"github.com/warp/penalty-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeExternal struct {
	invoice *ledger.Invoice
	fresh   bool
	err     error
	pulls   int
}

func (f *fakeExternal) Pull(ctx context.Context, clientRef string, number ledger.InvoiceNumber) (*ledger.Invoice, bool, error) {
	f.pulls++
	if f.err != nil {
		return nil, false, f.err
	}
	return f.invoice, f.fresh, nil
}

type fakeInvoicing struct {
	fees        []ledger.FeeRequest
	invoices    []ledger.InvoiceRequest
	failFee     bool
	failInvoice bool
}

func (f *fakeInvoicing) CreateFee(ctx context.Context, clientRef string, req ledger.FeeRequest) (ledger.FeeID, error) {
	if f.failFee {
		return "", fmt.Errorf("ledger rejected fee")
	}
	f.fees = append(f.fees, req)
	return ledger.FeeID(fmt.Sprintf("fee-%d", len(f.fees))), nil
}

func (f *fakeInvoicing) CreateInvoice(ctx context.Context, clientRef string, req ledger.InvoiceRequest) (ledger.InvoiceNumber, error) {
	if f.failInvoice {
		return "", fmt.Errorf("ledger rejected invoice")
	}
	f.invoices = append(f.invoices, req)
	return ledger.InvoiceNumber(fmt.Sprintf("INV-PEN-%d", len(f.invoices))), nil
}

type testEnv struct {
	store     *memory.Store
	external  *fakeExternal
	invoicing *fakeInvoicing
	service   *penalty.CalculationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	external := &fakeExternal{
		invoice: &ledger.Invoice{
			Number:  "INV-100",
			DueDate: engine.NewDate(2025, time.March, 10),
			LineItems: []ledger.LineItem{{
				ID:     "li-1",
				Type:   ledger.LineItemFee,
				Amount: engine.MustDecimal("100.00"),
			}},
		},
		fresh: true,
	}
	invoicing := &fakeInvoicing{}

	rates := engine.NewRegistry([]engine.RatePeriod{
		{Start: engine.NewDate(2024, time.January, 1), End: engine.NewDate(2026, time.December, 31), AnnualRate: engine.MustDecimal("0.0850")},
	})

	log := logrus.New()
	log.SetOutput(io.Discard)

	service := penalty.NewCalculationService(store, ledger.NewMirrorService(external, store), invoicing, rates, log)
	service.Now = func() engine.Date { return engine.NewDate(2025, time.March, 20) }

	return &testEnv{store: store, external: external, invoicing: invoicing, service: service}
}

func (e *testEnv) saveObligation(t *testing.T, ob penalty.Obligation) {
	t.Helper()
	require.NoError(t, e.store.SaveObligation(context.Background(), &ob))
}

func baseObligation() penalty.Obligation {
	return penalty.Obligation{
		ID:                 "ob-1",
		ClientRef:          "client-1",
		FeeAmount:          engine.MustDecimal("100.00"),
		InvoiceNumber:      "INV-100",
		PenaltyStatus:      penalty.StatusNone,
		CreatedAt:          engine.NewDate(2025, time.February, 1),
		ComplianceDeadline: engine.NewDate(2025, time.February, 15),
	}
}

// =============================================================================
// DRY-RUN PROJECTIONS
// =============================================================================

func TestCalculateOverdue_Projection(t *testing.T) {
	// GIVEN an unpaid obligation whose invoice fell due March 10
	env := newTestEnv(t)
	env.saveObligation(t, baseObligation())

	// WHEN projecting without finalizing, today being March 20
	res, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)
	require.NotNil(t, res)

	// THEN accrual runs March 11 through March 20
	assert.Equal(t, 10, res.DaysLate)
	assert.Equal(t, "2025-03-10", res.AccrualStart.String())
	assert.Equal(t, "2025-03-20", res.AccrualFinal.String())

	// 10 days x 0.38% on 100.00 plus daily compounding
	assert.Equal(t, "3.80", res.AccumulatedPenalty.StringFixed(2))
	assert.True(t, res.TotalPenalty.GreaterThanOrEqual(res.AccumulatedPenalty))
	assert.True(t, res.TotalAmount.Equal(res.TotalPenalty.Add(res.FAAInterest)))

	// The statutory rate surfaces as a percentage
	assert.Equal(t, "0.38", res.ChargeRatePercent.String())
	assert.True(t, res.DataIsFresh)
	assert.Equal(t, penalty.StatusNone, res.PenaltyStatus)

	// Nothing was persisted and no external invoice was created
	assert.Nil(t, res.Penalty)
	assert.Empty(t, env.invoicing.fees)
	ps, _ := env.store.PenaltiesByObligation(context.Background(), "ob-1")
	assert.Empty(t, ps)
}

func TestCalculateOverdue_FAAInterestAddsOnTop(t *testing.T) {
	env := newTestEnv(t)
	env.external.invoice.InterestBalance = engine.MustDecimal("12.345")
	env.saveObligation(t, baseObligation())

	res, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)

	assert.Equal(t, "12.35", res.FAAInterest.StringFixed(2))
	assert.True(t, res.TotalAmount.Equal(res.TotalPenalty.Add(engine.MustDecimal("12.35"))))
}

func TestCalculateOverdue_StaleLedgerReadIsFlagged(t *testing.T) {
	env := newTestEnv(t)
	env.external.fresh = false
	env.saveObligation(t, baseObligation())

	res, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)
	assert.False(t, res.DataIsFresh)
}

func TestCalculateOverdue_CapAtThreeTimesPrincipal(t *testing.T) {
	// GIVEN a window long enough for daily compounding to blow past 300%
	env := newTestEnv(t)
	env.saveObligation(t, baseObligation())
	env.service.Now = func() engine.Date { return engine.NewDate(2028, time.March, 10) }

	res, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)

	// THEN the total clamps silently at 300.00 while the raw accumulators
	// keep their unclamped values
	assert.Equal(t, "300.00", res.TotalPenalty.StringFixed(2))
	assert.True(t, res.AccumulatedPenalty.Add(res.AccumulatedCompounding).GreaterThan(engine.MustDecimal("300.00")))
}

func TestCalculateOverdue_SettledFeeClosesWindow(t *testing.T) {
	// GIVEN payments that drove the fee to zero on March 16
	env := newTestEnv(t)
	env.external.invoice.LineItems[0].Payments = []ledger.Payment{
		{ID: "p1", Amount: engine.MustDecimal("100.00"), ReceivedDate: engine.NewDate(2025, time.March, 16)},
	}
	env.saveObligation(t, baseObligation())

	res, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)

	// THEN the accrual window ends on the settled date, not today
	assert.Equal(t, "2025-03-16", res.AccrualFinal.String())
	assert.Equal(t, 6, res.DaysLate)
}

func TestCalculate_Errors(t *testing.T) {
	t.Run("unknown obligation", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.service.CalculateOverdue(context.Background(), "missing", penalty.Options{})
		assert.ErrorIs(t, err, engine.ErrObligationNotFound)
		assert.True(t, engine.IsClientError(err))
	})

	t.Run("no linked invoice", func(t *testing.T) {
		env := newTestEnv(t)
		ob := baseObligation()
		ob.InvoiceNumber = ""
		env.saveObligation(t, ob)

		_, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
		assert.ErrorIs(t, err, engine.ErrMissingInvoice)
	})

	t.Run("ledger down", func(t *testing.T) {
		env := newTestEnv(t)
		env.external.err = fmt.Errorf("timeout")
		env.saveObligation(t, baseObligation())

		_, err := env.service.CalculateOverdue(context.Background(), "ob-1", penalty.Options{})
		assert.ErrorIs(t, err, engine.ErrLedgerUnavailable)
		assert.True(t, engine.IsRetryable(err))
	})
}

// =============================================================================
// LATE SUBMISSION
// =============================================================================

func TestCalculateLateSubmission_OnTimeIsNotApplicable(t *testing.T) {
	// GIVEN an obligation submitted on its deadline
	env := newTestEnv(t)
	ob := baseObligation()
	ob.CreatedAt = ob.ComplianceDeadline
	env.saveObligation(t, ob)

	res, err := env.service.CalculateLateSubmission(context.Background(), "ob-1", penalty.Options{Finalize: true})
	require.NoError(t, err)

	// THEN no result, no external calls, nothing persisted
	assert.Nil(t, res)
	assert.Equal(t, 0, env.external.pulls)
	assert.Empty(t, env.invoicing.fees)
}

func TestCalculateLateSubmission_MonthlyCompounding(t *testing.T) {
	// GIVEN an obligation submitted Feb 1 against a Dec 15 deadline
	env := newTestEnv(t)
	ob := baseObligation()
	ob.ComplianceDeadline = engine.NewDate(2024, time.December, 15)
	ob.CreatedAt = engine.NewDate(2025, time.February, 1)
	env.saveObligation(t, ob)

	res, err := env.service.CalculateLateSubmission(context.Background(), "ob-1", penalty.Options{})
	require.NoError(t, err)
	require.NotNil(t, res)

	// THEN accrual runs Dec 16 through today, monthly compounded: the total
	// is the accumulated penalty alone
	assert.Equal(t, penalty.KindLateSubmission, res.Kind)
	assert.Equal(t, "2024-12-15", res.AccrualStart.String())
	assert.Equal(t, "2025-03-20", res.AccrualFinal.String())
	assert.Equal(t, 95, res.DaysLate)
	assert.True(t, res.TotalPenalty.Equal(res.AccumulatedPenalty))
	assert.True(t, res.AccumulatedCompounding.IsPositive())
}

// =============================================================================
// FINALIZATION
// =============================================================================

func TestFinalize_PersistsPenaltyAndInvoices(t *testing.T) {
	env := newTestEnv(t)
	env.saveObligation(t, baseObligation())
	ctx := context.Background()

	res, err := env.service.CalculateOverdue(ctx, "ob-1", penalty.Options{Finalize: true})
	require.NoError(t, err)
	require.NotNil(t, res.Penalty)

	p := res.Penalty
	assert.Equal(t, penalty.KindAutomaticOverdue, p.Kind)
	assert.Equal(t, penalty.StatusNotPaid, p.Status)
	assert.True(t, p.Amount.Equal(res.TotalPenalty))
	assert.Equal(t, ledger.InvoiceNumber("INV-PEN-1"), p.InvoiceNumber)

	// One fee dated the day after the window, one invoice due 30 days later
	require.Len(t, env.invoicing.fees, 1)
	assert.Equal(t, "2025-03-21", env.invoicing.fees[0].FeeDate.String())
	assert.True(t, env.invoicing.fees[0].Amount.Equal(p.Amount))
	require.Len(t, env.invoicing.invoices, 1)
	assert.Equal(t, "2025-04-19", env.invoicing.invoices[0].DueDate.String())

	// The penalty, its accrual rows, and the obligation status all committed
	stored, err := env.store.GetPenalty(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	rows, err := env.store.Accruals(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, rows, res.DaysLate)

	ob, err := env.store.GetObligation(ctx, "ob-1")
	require.NoError(t, err)
	assert.Equal(t, penalty.StatusNotPaid, ob.PenaltyStatus)
	assert.Equal(t, penalty.StatusNotPaid, res.PenaltyStatus)

	// The mirror was refreshed again after finalization
	assert.Equal(t, 2, env.external.pulls)
}

func TestFinalize_AccrualRowsAreRounded(t *testing.T) {
	env := newTestEnv(t)
	env.saveObligation(t, baseObligation())
	ctx := context.Background()

	res, err := env.service.CalculateOverdue(ctx, "ob-1", penalty.Options{Finalize: true})
	require.NoError(t, err)

	rows, err := env.store.Accruals(ctx, res.Penalty.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.True(t, row.DailyPenalty.Equal(engine.RoundMoney(row.DailyPenalty)))
		assert.True(t, row.AccumulatedPenalty.Equal(engine.RoundMoney(row.AccumulatedPenalty)))
	}
}

func TestFinalize_ExternalFailureCommitsNothing(t *testing.T) {
	for name, setup := range map[string]func(*fakeInvoicing){
		"fee creation fails":     func(f *fakeInvoicing) { f.failFee = true },
		"invoice creation fails": func(f *fakeInvoicing) { f.failInvoice = true },
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			setup(env.invoicing)
			env.saveObligation(t, baseObligation())
			ctx := context.Background()

			_, err := env.service.CalculateOverdue(ctx, "ob-1", penalty.Options{Finalize: true})
			require.Error(t, err)
			assert.ErrorIs(t, err, engine.ErrInvoiceCreateFailed)
			assert.True(t, engine.IsRetryable(err))

			ps, _ := env.store.PenaltiesByObligation(ctx, "ob-1")
			assert.Empty(t, ps)
			ob, _ := env.store.GetObligation(ctx, "ob-1")
			assert.Equal(t, penalty.StatusNone, ob.PenaltyStatus)
		})
	}
}

// brokenTxStore forces the finalization transaction to fail after fn ran.
type brokenTxStore struct {
	*memory.Store
}

func (b *brokenTxStore) WithTx(ctx context.Context, fn func(penalty.Store) error) error {
	return b.Store.WithTx(ctx, func(tx penalty.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errors.New("disk full")
	})
}

func TestFinalize_StorageFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.service.Store = &brokenTxStore{Store: env.store}
	env.saveObligation(t, baseObligation())
	ctx := context.Background()

	_, err := env.service.CalculateOverdue(ctx, "ob-1", penalty.Options{Finalize: true})
	require.Error(t, err)

	// The rollback left no penalty and the obligation status untouched
	ps, _ := env.store.PenaltiesByObligation(ctx, "ob-1")
	assert.Empty(t, ps)
	ob, _ := env.store.GetObligation(ctx, "ob-1")
	assert.Equal(t, penalty.StatusNone, ob.PenaltyStatus)
}

func TestFinalize_SupplementaryObligationHoldsBothPenalties(t *testing.T) {
	// GIVEN a supplementary obligation that was both submitted late and
	// left unpaid past its invoice due date
	env := newTestEnv(t)
	ob := baseObligation()
	ob.Supplementary = true
	ob.ComplianceDeadline = engine.NewDate(2024, time.December, 15)
	ob.CreatedAt = engine.NewDate(2025, time.February, 1)
	env.saveObligation(t, ob)
	ctx := context.Background()

	// WHEN finalizing both kinds
	overdue, err := env.service.CalculateOverdue(ctx, "ob-1", penalty.Options{Finalize: true})
	require.NoError(t, err)
	late, err := env.service.CalculateLateSubmission(ctx, "ob-1", penalty.Options{Finalize: true})
	require.NoError(t, err)

	// THEN two independent penalties exist with their own windows
	ps, err := env.store.PenaltiesByObligation(ctx, "ob-1")
	require.NoError(t, err)
	require.Len(t, ps, 2)

	assert.NotEqual(t, overdue.Penalty.ID, late.Penalty.ID)
	assert.Equal(t, "2025-03-10", overdue.AccrualStart.String())
	assert.Equal(t, "2024-12-15", late.AccrualStart.String())
	assert.Equal(t, penalty.FrequencyDaily, overdue.Penalty.CompoundingFrequency)
	assert.Equal(t, penalty.FrequencyMonthly, late.Penalty.CompoundingFrequency)
}
