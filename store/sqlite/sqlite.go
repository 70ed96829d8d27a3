/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements penalty.Store and ledger.MirrorStore, plus interest-rate table
  persistence, using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  penalty_accruals has no UPDATE or DELETE path. A recalculation writes a
  fresh penalty with its own rows; history stands.

MIRROR TABLES:
  invoices, line_items, payments, adjustments reflect the external ledger.
  A refresh replaces one invoice's subtree wholesale inside a transaction;
  nothing else writes there.

KEY TABLES:
  obligations:      Compliance obligations (penalty_status is the one mutable field)
  penalties:        One row per (obligation, kind) calculation, never rewritten
  penalty_accruals: Immutable day-by-day accrual history
  interest_rates:   Loaded regulator rate periods
  invoices et al.:  Ledger mirror

CONCURRENCY:
  sync.RWMutex for thread-safety; WAL mode for better read concurrency. The
  WithTx boundary is also the serialization point for finalizing a penalty.

USAGE:
  store, err := sqlite.New("./data/penalty.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - penalty/store.go: Interface definition
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/penalty-engine/engine"
	"github.com/warp/penalty-engine/ledger"
	"github.com/warp/penalty-engine/penalty"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS obligations (
		id TEXT PRIMARY KEY,
		client_ref TEXT NOT NULL,
		fee_amount TEXT NOT NULL,
		invoice_number TEXT,
		penalty_status TEXT NOT NULL DEFAULT 'none',
		created_date TEXT NOT NULL,
		compliance_deadline TEXT NOT NULL,
		supplementary BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_status
		ON obligations(penalty_status);

	CREATE TABLE IF NOT EXISTS penalties (
		id TEXT PRIMARY KEY,
		obligation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		accrual_start TEXT NOT NULL,
		accrual_final TEXT NOT NULL,
		accrual_frequency TEXT NOT NULL,
		compounding_frequency TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		invoice_number TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_penalties_obligation
		ON penalties(obligation_id);

	-- Append-only: no UPDATE or DELETE path exists for this table.
	CREATE TABLE IF NOT EXISTS penalty_accruals (
		id TEXT PRIMARY KEY,
		penalty_id TEXT NOT NULL,
		accrual_date TEXT NOT NULL,
		rate TEXT NOT NULL,
		daily_penalty TEXT NOT NULL,
		compounded TEXT NOT NULL,
		accumulated_penalty TEXT NOT NULL,
		accumulated_compounding TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accruals_penalty_date
		ON penalty_accruals(penalty_id, accrual_date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_accruals_unique_day
		ON penalty_accruals(penalty_id, accrual_date);

	CREATE TABLE IF NOT EXISTS interest_rates (
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		PRIMARY KEY (start_date, end_date)
	);

	-- Ledger mirror: replaced wholesale on refresh.
	CREATE TABLE IF NOT EXISTS invoices (
		number TEXT PRIMARY KEY,
		client_ref TEXT NOT NULL,
		due_date TEXT NOT NULL,
		outstanding_balance TEXT NOT NULL,
		fee_balance TEXT NOT NULL,
		interest_balance TEXT NOT NULL,
		void BOOLEAN DEFAULT FALSE,
		refreshed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		item_type TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_invoice
		ON line_items(invoice_number);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		line_item_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		received_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_line_item
		ON payments(line_item_id);

	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		line_item_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		adjustment_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_line_item
		ON adjustments(line_item_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// OBLIGATIONS (penalty.Store)
// =============================================================================

func (s *Store) SaveObligation(ctx context.Context, ob *penalty.Obligation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveObligation(ctx, s.db, ob)
}

func saveObligation(ctx context.Context, db execer, ob *penalty.Obligation) error {
	query := `
		INSERT INTO obligations
		(id, client_ref, fee_amount, invoice_number, penalty_status, created_date, compliance_deadline, supplementary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_ref = excluded.client_ref,
			fee_amount = excluded.fee_amount,
			invoice_number = excluded.invoice_number,
			penalty_status = excluded.penalty_status,
			created_date = excluded.created_date,
			compliance_deadline = excluded.compliance_deadline,
			supplementary = excluded.supplementary
	`
	_, err := db.ExecContext(ctx, query,
		ob.ID,
		ob.ClientRef,
		ob.FeeAmount.String(),
		string(ob.InvoiceNumber),
		string(ob.PenaltyStatus),
		ob.CreatedAt.String(),
		ob.ComplianceDeadline.String(),
		ob.Supplementary,
	)
	if err != nil {
		return fmt.Errorf("failed to save obligation: %w", err)
	}
	return nil
}

func (s *Store) GetObligation(ctx context.Context, id penalty.ObligationID) (*penalty.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_ref, fee_amount, invoice_number, penalty_status, created_date, compliance_deadline, supplementary
		FROM obligations WHERE id = ?`, id)

	ob, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ob, nil
}

func (s *Store) ListUnpaidObligations(ctx context.Context) ([]penalty.Obligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_ref, fee_amount, invoice_number, penalty_status, created_date, compliance_deadline, supplementary
		FROM obligations WHERE penalty_status != 'paid' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()

	var out []penalty.Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ob)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (*penalty.Obligation, error) {
	var (
		ob                     penalty.Obligation
		feeAmount              string
		invoiceNumber          sql.NullString
		createdDate, deadline  string
	)
	err := row.Scan(&ob.ID, &ob.ClientRef, &feeAmount, &invoiceNumber,
		&ob.PenaltyStatus, &createdDate, &deadline, &ob.Supplementary)
	if err != nil {
		return nil, err
	}
	ob.FeeAmount = engine.MustDecimal(feeAmount)
	ob.InvoiceNumber = ledger.InvoiceNumber(invoiceNumber.String)
	if ob.CreatedAt, err = engine.ParseDate(createdDate); err != nil {
		return nil, fmt.Errorf("failed to scan obligation created date: %w", err)
	}
	if ob.ComplianceDeadline, err = engine.ParseDate(deadline); err != nil {
		return nil, fmt.Errorf("failed to scan obligation deadline: %w", err)
	}
	return &ob, nil
}

func (s *Store) SetPenaltyStatus(ctx context.Context, id penalty.ObligationID, status penalty.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setPenaltyStatus(ctx, s.db, id, status)
}

func setPenaltyStatus(ctx context.Context, db execer, id penalty.ObligationID, status penalty.Status) error {
	_, err := db.ExecContext(ctx,
		"UPDATE obligations SET penalty_status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update penalty status: %w", err)
	}
	return nil
}

// =============================================================================
// PENALTIES (penalty.Store)
// =============================================================================

func (s *Store) SavePenalty(ctx context.Context, p *penalty.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePenalty(ctx, s.db, p)
}

func savePenalty(ctx context.Context, db execer, p *penalty.Penalty) error {
	query := `
		INSERT INTO penalties
		(id, obligation_id, kind, accrual_start, accrual_final, accrual_frequency,
		 compounding_frequency, amount, status, invoice_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		p.ID,
		p.ObligationID,
		string(p.Kind),
		p.AccrualStart.String(),
		p.AccrualFinal.String(),
		string(p.AccrualFrequency),
		string(p.CompoundingFrequency),
		p.Amount.String(),
		string(p.Status),
		string(p.InvoiceNumber),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save penalty: %w", err)
	}
	return nil
}

func (s *Store) GetPenalty(ctx context.Context, id penalty.PenaltyID) (*penalty.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, obligation_id, kind, accrual_start, accrual_final, accrual_frequency,
		       compounding_frequency, amount, status, invoice_number, created_at
		FROM penalties WHERE id = ?`, id)

	p, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) PenaltiesByObligation(ctx context.Context, id penalty.ObligationID) ([]penalty.Penalty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, obligation_id, kind, accrual_start, accrual_final, accrual_frequency,
		       compounding_frequency, amount, status, invoice_number, created_at
		FROM penalties WHERE obligation_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query penalties: %w", err)
	}
	defer rows.Close()

	var out []penalty.Penalty
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPenalty(row rowScanner) (*penalty.Penalty, error) {
	var (
		p                    penalty.Penalty
		start, final, amount string
		invoiceNumber        sql.NullString
		createdAt            string
	)
	err := row.Scan(&p.ID, &p.ObligationID, &p.Kind, &start, &final,
		&p.AccrualFrequency, &p.CompoundingFrequency, &amount, &p.Status,
		&invoiceNumber, &createdAt)
	if err != nil {
		return nil, err
	}
	if p.AccrualStart, err = engine.ParseDate(start); err != nil {
		return nil, fmt.Errorf("failed to scan accrual start: %w", err)
	}
	if p.AccrualFinal, err = engine.ParseDate(final); err != nil {
		return nil, fmt.Errorf("failed to scan accrual final: %w", err)
	}
	p.Amount = engine.MustDecimal(amount)
	p.InvoiceNumber = ledger.InvoiceNumber(invoiceNumber.String)
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

// =============================================================================
// ACCRUALS (penalty.Store, append-only)
// =============================================================================

func (s *Store) AppendAccruals(ctx context.Context, rows []penalty.Accrual) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAccruals(ctx, s.db, rows)
}

func appendAccruals(ctx context.Context, db execer, rows []penalty.Accrual) error {
	query := `
		INSERT INTO penalty_accruals
		(id, penalty_id, accrual_date, rate, daily_penalty, compounded,
		 accumulated_penalty, accumulated_compounding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, row := range rows {
		_, err := db.ExecContext(ctx, query,
			row.ID,
			row.PenaltyID,
			row.Date.String(),
			row.Rate.String(),
			row.DailyPenalty.String(),
			row.Compounded.String(),
			row.AccumulatedPenalty.String(),
			row.AccumulatedCompounding.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to append accrual: %w", err)
		}
	}
	return nil
}

func (s *Store) Accruals(ctx context.Context, id penalty.PenaltyID) ([]penalty.Accrual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, penalty_id, accrual_date, rate, daily_penalty, compounded,
		       accumulated_penalty, accumulated_compounding
		FROM penalty_accruals WHERE penalty_id = ? ORDER BY accrual_date ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query accruals: %w", err)
	}
	defer rows.Close()

	var out []penalty.Accrual
	for rows.Next() {
		var (
			a                                        penalty.Accrual
			date, rate, daily, compounded, accP, accC string
		)
		if err := rows.Scan(&a.ID, &a.PenaltyID, &date, &rate, &daily,
			&compounded, &accP, &accC); err != nil {
			return nil, fmt.Errorf("failed to scan accrual: %w", err)
		}
		if a.Date, err = engine.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to scan accrual date: %w", err)
		}
		a.Rate = engine.MustDecimal(rate)
		a.DailyPenalty = engine.MustDecimal(daily)
		a.Compounded = engine.MustDecimal(compounded)
		a.AccumulatedPenalty = engine.MustDecimal(accP)
		a.AccumulatedCompounding = engine.MustDecimal(accC)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (penalty.Store WithTx)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(penalty.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveObligation(ctx context.Context, ob *penalty.Obligation) error {
	return saveObligation(ctx, ts.tx, ob)
}

func (ts *txStore) SetPenaltyStatus(ctx context.Context, id penalty.ObligationID, status penalty.Status) error {
	return setPenaltyStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) SavePenalty(ctx context.Context, p *penalty.Penalty) error {
	return savePenalty(ctx, ts.tx, p)
}

func (ts *txStore) AppendAccruals(ctx context.Context, rows []penalty.Accrual) error {
	return appendAccruals(ctx, ts.tx, rows)
}

func (ts *txStore) GetObligation(ctx context.Context, id penalty.ObligationID) (*penalty.Obligation, error) {
	row := ts.tx.QueryRowContext(ctx, `
		SELECT id, client_ref, fee_amount, invoice_number, penalty_status, created_date, compliance_deadline, supplementary
		FROM obligations WHERE id = ?`, id)
	ob, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ob, err
}

func (ts *txStore) ListUnpaidObligations(ctx context.Context) ([]penalty.Obligation, error) {
	return nil, fmt.Errorf("list not supported inside transaction")
}

func (ts *txStore) GetPenalty(ctx context.Context, id penalty.PenaltyID) (*penalty.Penalty, error) {
	row := ts.tx.QueryRowContext(ctx, `
		SELECT id, obligation_id, kind, accrual_start, accrual_final, accrual_frequency,
		       compounding_frequency, amount, status, invoice_number, created_at
		FROM penalties WHERE id = ?`, id)
	p, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (ts *txStore) PenaltiesByObligation(ctx context.Context, id penalty.ObligationID) ([]penalty.Penalty, error) {
	return nil, fmt.Errorf("list not supported inside transaction")
}

func (ts *txStore) Accruals(ctx context.Context, id penalty.PenaltyID) ([]penalty.Accrual, error) {
	return nil, fmt.Errorf("list not supported inside transaction")
}

func (ts *txStore) WithTx(ctx context.Context, fn func(penalty.Store) error) error {
	return fn(ts) // already inside a transaction
}

// =============================================================================
// INTEREST RATES
// =============================================================================

// ReplaceRatePeriods swaps the stored rate table for a validated one.
// The loader (factory package) owns overlap validation.
func (s *Store) ReplaceRatePeriods(ctx context.Context, periods []engine.RatePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM interest_rates"); err != nil {
		return fmt.Errorf("failed to clear rates: %w", err)
	}
	for _, p := range periods {
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO interest_rates (start_date, end_date, annual_rate) VALUES (?, ?, ?)",
			p.Start.String(), p.End.String(), p.AnnualRate.String())
		if err != nil {
			return fmt.Errorf("failed to insert rate: %w", err)
		}
	}
	return sqlTx.Commit()
}

// ListRatePeriods returns the stored rate table in start-date order.
func (s *Store) ListRatePeriods(ctx context.Context) ([]engine.RatePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT start_date, end_date, annual_rate FROM interest_rates ORDER BY start_date ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var out []engine.RatePeriod
	for rows.Next() {
		var start, end, rate string
		if err := rows.Scan(&start, &end, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		var p engine.RatePeriod
		if p.Start, err = engine.ParseDate(start); err != nil {
			return nil, err
		}
		if p.End, err = engine.ParseDate(end); err != nil {
			return nil, err
		}
		p.AnnualRate = engine.MustDecimal(rate)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// LEDGER MIRROR (ledger.MirrorStore)
// =============================================================================

// SaveInvoice replaces one invoice's mirror subtree wholesale. This is the
// only write path into the mirror tables.
func (s *Store) SaveInvoice(ctx context.Context, clientRef string, inv *ledger.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		DELETE FROM payments WHERE line_item_id IN
			(SELECT id FROM line_items WHERE invoice_number = ?)`, inv.Number)
	if err != nil {
		return fmt.Errorf("failed to clear payments: %w", err)
	}
	_, err = sqlTx.ExecContext(ctx, `
		DELETE FROM adjustments WHERE line_item_id IN
			(SELECT id FROM line_items WHERE invoice_number = ?)`, inv.Number)
	if err != nil {
		return fmt.Errorf("failed to clear adjustments: %w", err)
	}
	if _, err = sqlTx.ExecContext(ctx,
		"DELETE FROM line_items WHERE invoice_number = ?", inv.Number); err != nil {
		return fmt.Errorf("failed to clear line items: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO invoices
		(number, client_ref, due_date, outstanding_balance, fee_balance, interest_balance, void, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			client_ref = excluded.client_ref,
			due_date = excluded.due_date,
			outstanding_balance = excluded.outstanding_balance,
			fee_balance = excluded.fee_balance,
			interest_balance = excluded.interest_balance,
			void = excluded.void,
			refreshed_at = excluded.refreshed_at`,
		inv.Number, clientRef, inv.DueDate.String(),
		inv.OutstandingBalance.String(), inv.FeeBalance.String(),
		inv.InterestBalance.String(), inv.Void,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	for _, li := range inv.LineItems {
		_, err = sqlTx.ExecContext(ctx,
			"INSERT INTO line_items (id, invoice_number, item_type, amount) VALUES (?, ?, ?, ?)",
			li.ID, inv.Number, string(li.Type), li.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to save line item: %w", err)
		}
		for _, p := range li.Payments {
			_, err = sqlTx.ExecContext(ctx,
				"INSERT INTO payments (id, line_item_id, amount, received_date) VALUES (?, ?, ?, ?)",
				p.ID, li.ID, p.Amount.String(), p.ReceivedDate.String())
			if err != nil {
				return fmt.Errorf("failed to save payment: %w", err)
			}
		}
		for _, a := range li.Adjustments {
			_, err = sqlTx.ExecContext(ctx,
				"INSERT INTO adjustments (id, line_item_id, amount, adjustment_date) VALUES (?, ?, ?, ?)",
				a.ID, li.ID, a.Amount.String(), a.AdjustmentDate.String())
			if err != nil {
				return fmt.Errorf("failed to save adjustment: %w", err)
			}
		}
	}

	return sqlTx.Commit()
}

// GetInvoice loads the last-known mirror for an invoice, or nil when the
// invoice has never been refreshed.
func (s *Store) GetInvoice(ctx context.Context, number ledger.InvoiceNumber) (*ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		inv                    ledger.Invoice
		due, out, fee, intBal  string
		refreshedAt, clientRef string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT number, client_ref, due_date, outstanding_balance, fee_balance, interest_balance, void, refreshed_at
		FROM invoices WHERE number = ?`, number).
		Scan(&inv.Number, &clientRef, &due, &out, &fee, &intBal, &inv.Void, &refreshedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice: %w", err)
	}
	if inv.DueDate, err = engine.ParseDate(due); err != nil {
		return nil, err
	}
	inv.OutstandingBalance = engine.MustDecimal(out)
	inv.FeeBalance = engine.MustDecimal(fee)
	inv.InterestBalance = engine.MustDecimal(intBal)

	liRows, err := s.db.QueryContext(ctx,
		"SELECT id, item_type, amount FROM line_items WHERE invoice_number = ? ORDER BY id", number)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer liRows.Close()

	for liRows.Next() {
		var li ledger.LineItem
		var amount string
		if err := liRows.Scan(&li.ID, &li.Type, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		li.Amount = engine.MustDecimal(amount)

		if li.Payments, err = s.paymentsFor(ctx, li.ID); err != nil {
			return nil, err
		}
		if li.Adjustments, err = s.adjustmentsFor(ctx, li.ID); err != nil {
			return nil, err
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := liRows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) paymentsFor(ctx context.Context, lineItemID string) ([]ledger.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, amount, received_date FROM payments WHERE line_item_id = ? ORDER BY received_date", lineItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Payment
	for rows.Next() {
		var p ledger.Payment
		var amount, received string
		if err := rows.Scan(&p.ID, &amount, &received); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = engine.MustDecimal(amount)
		if p.ReceivedDate, err = engine.ParseDate(received); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) adjustmentsFor(ctx context.Context, lineItemID string) ([]ledger.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, amount, adjustment_date FROM adjustments WHERE line_item_id = ? ORDER BY adjustment_date", lineItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Adjustment
	for rows.Next() {
		var a ledger.Adjustment
		var amount, adjusted string
		if err := rows.Scan(&a.ID, &amount, &adjusted); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		a.Amount = engine.MustDecimal(amount)
		if a.AdjustmentDate, err = engine.ParseDate(adjusted); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Compile-time interface checks.
var _ penalty.Store = (*Store)(nil)
var _ ledger.MirrorStore = (*Store)(nil)
