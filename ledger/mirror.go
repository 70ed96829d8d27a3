/*
mirror.go - Ledger refresh and reconciliation queries

PURPOSE:
  Refreshes the local invoice mirror from the external ledger and answers the
  date-cutoff queries the simulator needs: total payments and adjustments
  effective strictly before a day, the resulting outstanding principal, and
  the date the obligation's fee line was driven to zero.

FRESHNESS:
  The external system may answer from its own cache. The `fresh` flag it
  returns passes through to callers untouched; a stale-but-successful pull is
  a valid degraded read. A FAILED pull surfaces ErrLedgerUnavailable and is
  retryable at the next invocation - the mirror never silently substitutes
  data from a different obligation.

SEE ALSO:
  - engine/simulator.go: BalanceSource consumed day by day
  - penalty/service.go: Calls Refresh before and after finalization
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
)

// =============================================================================
// EXTERNAL LEDGER - Collaborator interface (read-only pull)
// =============================================================================

// ExternalLedger is the source of truth for invoice balances. Pull returns
// the current invoice state and whether the data is fresh (false signals a
// degraded/cached read on the external side).
type ExternalLedger interface {
	Pull(ctx context.Context, clientRef string, number InvoiceNumber) (*Invoice, bool, error)
}

// MirrorStore persists the last-known mirror snapshot. A refresh replaces
// the invoice and all its children wholesale; nothing else writes here.
type MirrorStore interface {
	SaveInvoice(ctx context.Context, clientRef string, inv *Invoice) error
	GetInvoice(ctx context.Context, number InvoiceNumber) (*Invoice, error)
}

// =============================================================================
// MIRROR - Refreshed snapshot plus reconciliation queries
// =============================================================================

// Mirror is one obligation's refreshed invoice state.
type Mirror struct {
	Invoice *Invoice
	Fresh   bool
}

// MirrorService refreshes mirrors through the external ledger.
type MirrorService struct {
	External ExternalLedger
	Store    MirrorStore
}

func NewMirrorService(external ExternalLedger, store MirrorStore) *MirrorService {
	return &MirrorService{External: external, Store: store}
}

// Refresh pulls the latest invoice state and persists it. Refresh is
// read-only against the external system and idempotent to repeat, so callers
// may run it outside their transaction boundary.
func (m *MirrorService) Refresh(ctx context.Context, clientRef string, number InvoiceNumber) (*Mirror, error) {
	inv, fresh, err := m.External.Pull(ctx, clientRef, number)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrLedgerUnavailable, err)
	}
	if m.Store != nil {
		if err := m.Store.SaveInvoice(ctx, clientRef, inv); err != nil {
			return nil, fmt.Errorf("persist mirror for invoice %s: %w", number, err)
		}
	}
	return &Mirror{Invoice: inv, Fresh: fresh}, nil
}

// PaymentsBefore sums payments across all line items with a received date
// strictly before d.
func (m *Mirror) PaymentsBefore(d engine.Date) decimal.Decimal {
	total := decimal.Zero
	for _, li := range m.Invoice.LineItems {
		for _, p := range li.Payments {
			if p.ReceivedDate.Before(d) {
				total = total.Add(p.Amount)
			}
		}
	}
	return total
}

// AdjustmentsBefore sums adjustments across all line items with an
// adjustment date strictly before d.
func (m *Mirror) AdjustmentsBefore(d engine.Date) decimal.Decimal {
	total := decimal.Zero
	for _, li := range m.Invoice.LineItems {
		for _, a := range li.Adjustments {
			if a.AdjustmentDate.Before(d) {
				total = total.Add(a.Amount)
			}
		}
	}
	return total
}

// SettledDate returns the last date a payment or adjustment drove the fee
// balance to zero: the max of the latest payment and adjustment dates, valid
// only once principal - payments + adjustments <= 0. ok is false while the
// obligation is unresolved.
func (m *Mirror) SettledDate(principal decimal.Decimal) (engine.Date, bool) {
	payments := decimal.Zero
	adjustments := decimal.Zero
	var last engine.Date
	for _, li := range m.Invoice.LineItems {
		for _, p := range li.Payments {
			payments = payments.Add(p.Amount)
			if p.ReceivedDate.After(last) {
				last = p.ReceivedDate
			}
		}
		for _, a := range li.Adjustments {
			adjustments = adjustments.Add(a.Amount)
			if a.AdjustmentDate.After(last) {
				last = a.AdjustmentDate
			}
		}
	}
	remaining := principal.Sub(payments).Add(adjustments)
	if remaining.IsPositive() || last.IsZero() {
		return engine.Date{}, false
	}
	return last, true
}

// =============================================================================
// OUTSTANDING BALANCE - engine.BalanceSource over a mirror
// =============================================================================

// OutstandingBalance adapts a mirror to the simulator's BalanceSource:
// outstanding(d) = principal - payments before d + adjustments before d.
type OutstandingBalance struct {
	Principal decimal.Decimal
	Mirror    *Mirror
}

func (o OutstandingBalance) OutstandingOn(d engine.Date) decimal.Decimal {
	return o.Principal.
		Sub(o.Mirror.PaymentsBefore(d)).
		Add(o.Mirror.AdjustmentsBefore(d))
}
