/*
Package memory provides an in-memory implementation of the storage
interfaces for tests.

Implements penalty.Store and ledger.MirrorStore with map-backed state behind
a mutex. WithTx snapshots state and restores it when fn fails, mirroring the
rollback semantics of the SQLite store.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/penalty"
)

type Store struct {
	mu          sync.RWMutex
	obligations map[penalty.ObligationID]penalty.Obligation
	penalties   map[penalty.PenaltyID]penalty.Penalty
	accruals    map[penalty.PenaltyID][]penalty.Accrual
	invoices    map[ledger.InvoiceNumber]ledger.Invoice
	rates       []engine.RatePeriod
}

func New() *Store {
	return &Store{
		obligations: make(map[penalty.ObligationID]penalty.Obligation),
		penalties:   make(map[penalty.PenaltyID]penalty.Penalty),
		accruals:    make(map[penalty.PenaltyID][]penalty.Accrual),
		invoices:    make(map[ledger.InvoiceNumber]ledger.Invoice),
	}
}

// =============================================================================
// penalty.Store
// =============================================================================

func (s *Store) SaveObligation(ctx context.Context, ob *penalty.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations[ob.ID] = *ob
	return nil
}

func (s *Store) GetObligation(ctx context.Context, id penalty.ObligationID) (*penalty.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ob, ok := s.obligations[id]
	if !ok {
		return nil, nil
	}
	return &ob, nil
}

func (s *Store) ListUnpaidObligations(ctx context.Context) ([]penalty.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []penalty.Obligation
	for _, ob := range s.obligations {
		if ob.PenaltyStatus != penalty.StatusPaid {
			out = append(out, ob)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetPenaltyStatus(ctx context.Context, id penalty.ObligationID, status penalty.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.obligations[id]
	if !ok {
		return nil
	}
	ob.PenaltyStatus = status
	s.obligations[id] = ob
	return nil
}

func (s *Store) SavePenalty(ctx context.Context, p *penalty.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penalties[p.ID] = *p
	return nil
}

func (s *Store) GetPenalty(ctx context.Context, id penalty.PenaltyID) (*penalty.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.penalties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) PenaltiesByObligation(ctx context.Context, id penalty.ObligationID) ([]penalty.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []penalty.Penalty
	for _, p := range s.penalties {
		if p.ObligationID == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AppendAccruals(ctx context.Context, rows []penalty.Accrual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.accruals[row.PenaltyID] = append(s.accruals[row.PenaltyID], row)
	}
	return nil
}

func (s *Store) Accruals(ctx context.Context, id penalty.PenaltyID) ([]penalty.Accrual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]penalty.Accrual, len(s.accruals[id]))
	copy(rows, s.accruals[id])
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

// WithTx snapshots state and restores it if fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(penalty.Store) error) error {
	s.mu.Lock()
	snapshot := s.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.obligations = snapshot.obligations
		s.penalties = snapshot.penalties
		s.accruals = snapshot.accruals
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) clone() *Store {
	c := New()
	for k, v := range s.obligations {
		c.obligations[k] = v
	}
	for k, v := range s.penalties {
		c.penalties[k] = v
	}
	for k, v := range s.accruals {
		rows := make([]penalty.Accrual, len(v))
		copy(rows, v)
		c.accruals[k] = rows
	}
	return c
}

// =============================================================================
// INTEREST RATES
// =============================================================================

func (s *Store) ReplaceRatePeriods(ctx context.Context, periods []engine.RatePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = make([]engine.RatePeriod, len(periods))
	copy(s.rates, periods)
	return nil
}

func (s *Store) ListRatePeriods(ctx context.Context) ([]engine.RatePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.RatePeriod, len(s.rates))
	copy(out, s.rates)
	return out, nil
}

// =============================================================================
// ledger.MirrorStore
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, clientRef string, inv *ledger.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.Number] = *inv
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, number ledger.InvoiceNumber) (*ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[number]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}
