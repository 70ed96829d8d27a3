/*
Package ledger mirrors the externally-hosted invoicing ledger.

PURPOSE:
  The external billing system is the source of truth for invoice balances,
  payments, and adjustments. This package holds a read-only local reflection
  of that state for one obligation, refreshed on demand, and defines the two
  collaborator interfaces at the system boundary:

    ExternalLedger   - read-only pull of invoice state
    ExternalInvoicing - fee + invoice creation when a penalty is finalized

MUTATION RULES:
  Mirror data is never locally mutated except by a refresh, which replaces
  the snapshot wholesale. Payment and adjustment effective dates act as
  strict cutoffs in simulation: a payment received ON day d does not reduce
  the principal until day d+1.

SEE ALSO:
  - mirror.go: Refresh service and balance queries
  - client.go: HTTP implementation of both collaborator interfaces
  - engine/simulator.go: Consumes OutstandingBalance day by day
*/
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type InvoiceNumber string
type FeeID string

// =============================================================================
// INVOICE - Local reflection of one external invoice
// =============================================================================

type Invoice struct {
	Number             InvoiceNumber
	DueDate            engine.Date
	OutstandingBalance decimal.Decimal
	FeeBalance         decimal.Decimal
	InterestBalance    decimal.Decimal
	Void               bool
	LineItems          []LineItem
}

type LineItemType string

const (
	LineItemFee LineItemType = "fee"
)

type LineItem struct {
	ID          string
	Type        LineItemType
	Amount      decimal.Decimal
	Payments    []Payment
	Adjustments []Adjustment
}

// Payment reduces the outstanding principal from the day after ReceivedDate.
type Payment struct {
	ID           string
	Amount       decimal.Decimal
	ReceivedDate engine.Date
}

// Adjustment shifts the outstanding principal (positive increases it) from
// the day after AdjustmentDate.
type Adjustment struct {
	ID             string
	Amount         decimal.Decimal
	AdjustmentDate engine.Date
}
