package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/penalty-engine/engine"
)

// =============================================================================
// EXTERNAL INVOICING - Collaborator interface (side-effecting)
// =============================================================================

// ExternalInvoicing creates a fee and an invoice for a finalized penalty in
// the external system. Two-step: the fee is created first, then an invoice
// referencing it. Invoked only when a calculation finalizes.
type ExternalInvoicing interface {
	CreateFee(ctx context.Context, clientRef string, fee FeeRequest) (FeeID, error)
	CreateInvoice(ctx context.Context, clientRef string, inv InvoiceRequest) (InvoiceNumber, error)
}

// FeeRequest describes the penalty fee. FeeDate is the day after the final
// accrued day.
type FeeRequest struct {
	Description string
	Amount      decimal.Decimal
	FeeDate     engine.Date
}

// InvoiceRequest bills previously created fees. DueDate is 30 days after the
// final accrued day.
type InvoiceRequest struct {
	DueDate engine.Date
	FeeIDs  []FeeID
}
