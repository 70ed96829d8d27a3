/*
store.go - Persistence interface for the penalty aggregate

PURPOSE:
  Defines the boundary between the calculation service and the database.
  Accrual rows are APPEND-ONLY: no Update, no Delete. A recalculation writes
  a fresh Penalty with its own rows; the prior penalty stands as history.

ATOMICITY:
  WithTx wraps the finalization sequence (penalty + accrual rows + obligation
  status) so it commits all-or-nothing. If external invoice creation fails
  after accruals were computed, nothing is persisted.

IMPLEMENTATIONS:
  - store/sqlite: production
  - store/memory: tests
*/
package penalty

import "context"

// Store handles persistence of obligations, penalties, and accrual rows.
type Store interface {
	// SaveObligation inserts or replaces an obligation record.
	SaveObligation(ctx context.Context, ob *Obligation) error

	// GetObligation returns nil without error when the id is unknown.
	GetObligation(ctx context.Context, id ObligationID) (*Obligation, error)

	// ListUnpaidObligations returns obligations whose penalty status is not
	// paid yet (none or not_paid). Used by the scheduled sweep.
	ListUnpaidObligations(ctx context.Context) ([]Obligation, error)

	// SetPenaltyStatus updates the one mutable obligation field.
	SetPenaltyStatus(ctx context.Context, id ObligationID, status Status) error

	// SavePenalty inserts a penalty record.
	SavePenalty(ctx context.Context, p *Penalty) error

	// GetPenalty returns nil without error when the id is unknown.
	GetPenalty(ctx context.Context, id PenaltyID) (*Penalty, error)

	// PenaltiesByObligation returns all penalties for an obligation,
	// oldest first. Historical penalties are included.
	PenaltiesByObligation(ctx context.Context, id ObligationID) ([]Penalty, error)

	// AppendAccruals persists accrual rows. Append-only.
	AppendAccruals(ctx context.Context, rows []Accrual) error

	// Accruals returns the rows of one penalty in date order.
	Accruals(ctx context.Context, id PenaltyID) ([]Accrual, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
