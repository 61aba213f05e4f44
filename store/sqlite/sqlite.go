/*
Package sqlite provides a SQLite-backed implementation of schedule.Repository.

PURPOSE:
  Persists contracts, their ordered payment terms, versioned rule sets and
  overdue sweep runs. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  schedule.ScheduleStore: Term reads and writes
  schedule.ContractStore: Contract records and code uniqueness
  contract.CodeChecker:   Via IsContractCodeUnique

KEY TABLES:
  contracts:     Contract header; code is unique, case-insensitive
  payment_terms: Terms with an explicit position column (schedule order)
  rule_sets:     Append-only history of validation rules as JSON
  sweep_runs:    Overdue sweeper audit trail

MONEY:
  Amounts and percentages are stored as decimal TEXT, never REAL, so a
  stored schedule reconciles to the cent after a round trip.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/schedules.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := schedule.NewService(store, schedule.DefaultRules())

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payment-schedule/schedule"
)

// Store implements schedule.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ schedule.Repository = (*Store)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_code
		ON contracts(code COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS payment_terms (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		term_number INTEGER NOT NULL,
		description TEXT,
		due_date TEXT,
		amount TEXT NOT NULL,
		percentage TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid',
		paid_amount TEXT NOT NULL DEFAULT '0',
		paid_date TEXT,
		notes TEXT,
		document_type TEXT,
		file_name TEXT
	);

	-- Hot path: load one schedule in order
	CREATE INDEX IF NOT EXISTS idx_payment_terms_contract_position
		ON payment_terms(contract_id, position);

	-- Overdue sweep
	CREATE INDEX IF NOT EXISTS idx_payment_terms_status_due
		ON payment_terms(status, due_date);

	CREATE TABLE IF NOT EXISTS rule_sets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		marked INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACT STORE (schedule.ContractStore interface)
// =============================================================================

// SaveContract inserts or updates a contract. A new ID is assigned when empty.
// Returns schedule.ErrDuplicateContractCode if another contract has the code.
func (s *Store) SaveContract(ctx context.Context, c schedule.Contract) (schedule.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = schedule.ContractID(uuid.NewString())
	}

	query := `
		INSERT INTO contracts (id, code, name, amount, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			amount = excluded.amount,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		string(c.ID), c.Code, c.Name, c.Amount.String(),
		nullString(c.StartDate), nullString(c.EndDate),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return schedule.Contract{}, fmt.Errorf("code %q: %w", c.Code, schedule.ErrDuplicateContractCode)
	}
	if err != nil {
		return schedule.Contract{}, err
	}

	saved, err := s.getContract(ctx, s.db, c.ID)
	if err != nil {
		return schedule.Contract{}, err
	}
	return *saved, nil
}

// GetContract retrieves a contract by ID.
func (s *Store) GetContract(ctx context.Context, id schedule.ContractID) (*schedule.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getContract(ctx, s.db, id)
}

func (s *Store) getContract(ctx context.Context, q querier, id schedule.ContractID) (*schedule.Contract, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, code, name, amount, start_date, end_date, created_at, updated_at
		FROM contracts WHERE id = ?`, string(id))
	c, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, schedule.ErrContractNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContracts returns all contracts ordered by code.
func (s *Store) ListContracts(ctx context.Context) ([]schedule.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, amount, start_date, end_date, created_at, updated_at
		FROM contracts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteContract removes a contract and, by cascade, its terms.
func (s *Store) DeleteContract(ctx context.Context, id schedule.ContractID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM contracts WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrContractNotFound
	}
	return nil
}

// IsContractCodeUnique reports whether no contract other than exclude uses code.
func (s *Store) IsContractCodeUnique(ctx context.Context, code string, exclude schedule.ContractID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contracts WHERE code = ? COLLATE NOCASE AND id != ?",
		strings.TrimSpace(code), string(exclude),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (schedule.Contract, error) {
	var c schedule.Contract
	var id, amount, createdAt, updatedAt string
	var start, end sql.NullString
	if err := row.Scan(&id, &c.Code, &c.Name, &amount, &start, &end, &createdAt, &updatedAt); err != nil {
		return schedule.Contract{}, err
	}
	c.ID = schedule.ContractID(id)
	c.Amount = parseDecimal(amount)
	c.StartDate = start.String
	c.EndDate = end.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return c, nil
}

// =============================================================================
// SCHEDULE STORE (schedule.ScheduleStore interface)
// =============================================================================

const termColumns = `id, term_number, description, due_date, amount, percentage,
	status, paid_amount, paid_date, notes, document_type, file_name`

// GetPaymentSchedule returns a contract's terms in schedule order.
func (s *Store) GetPaymentSchedule(ctx context.Context, contractID schedule.ContractID) ([]schedule.PaymentTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireContract(ctx, s.db, contractID); err != nil {
		return nil, err
	}
	return s.loadTerms(ctx, s.db, contractID)
}

func (s *Store) loadTerms(ctx context.Context, q querier, contractID schedule.ContractID) ([]schedule.PaymentTerm, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+termColumns+" FROM payment_terms WHERE contract_id = ? ORDER BY position",
		string(contractID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := []schedule.PaymentTerm{}
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// AddTerm appends a term at the end of the schedule.
func (s *Store) AddTerm(ctx context.Context, contractID schedule.ContractID, term schedule.PaymentTerm) (schedule.PaymentTerm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireContract(ctx, s.db, contractID); err != nil {
		return schedule.PaymentTerm{}, err
	}

	var next int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) + 1 FROM payment_terms WHERE contract_id = ?",
		string(contractID)).Scan(&next)
	if err != nil {
		return schedule.PaymentTerm{}, err
	}

	if term.ID == "" {
		term.ID = schedule.TermID(uuid.NewString())
	}
	if err := insertTerm(ctx, s.db, contractID, next, term); err != nil {
		return schedule.PaymentTerm{}, err
	}
	return term, nil
}

// UpdateTerm overwrites the editable fields of one term. Position is kept.
func (s *Store) UpdateTerm(ctx context.Context, contractID schedule.ContractID, term schedule.PaymentTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireContract(ctx, s.db, contractID); err != nil {
		return err
	}

	query := `
		UPDATE payment_terms SET
			term_number = ?, description = ?, due_date = ?, amount = ?, percentage = ?,
			status = ?, paid_amount = ?, paid_date = ?, notes = ?, document_type = ?, file_name = ?
		WHERE id = ? AND contract_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		term.TermNumber, term.Description, nullString(term.DueDate),
		term.Amount.String(), term.Percentage.String(),
		string(term.Status), term.PaidAmount.String(), nullString(term.PaidDate),
		nullString(term.Notes), nullString(term.DocumentType), nullString(term.FileName),
		string(term.ID), string(contractID),
	)
	return affectedOrNotFound(res, err)
}

// DeleteTerm removes one term and closes the gap in positions.
func (s *Store) DeleteTerm(ctx context.Context, contractID schedule.ContractID, termID schedule.TermID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireContract(ctx, tx, contractID); err != nil {
			return err
		}

		var pos int
		err := tx.QueryRowContext(ctx,
			"SELECT position FROM payment_terms WHERE id = ? AND contract_id = ?",
			string(termID), string(contractID)).Scan(&pos)
		if err == sql.ErrNoRows {
			return schedule.ErrTermNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM payment_terms WHERE id = ?", string(termID)); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE payment_terms SET position = position - 1 WHERE contract_id = ? AND position > ?",
			string(contractID), pos)
		return err
	})
}

// UpdateTermStatus writes the status lifecycle fields of one term.
func (s *Store) UpdateTermStatus(ctx context.Context, contractID schedule.ContractID, termID schedule.TermID, u schedule.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireContract(ctx, s.db, contractID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_terms SET status = ?, paid_date = ?, paid_amount = ?, notes = ?
		WHERE id = ? AND contract_id = ?`,
		string(u.Status), nullString(u.PaidDate), u.PaidAmount.String(), nullString(u.Notes),
		string(termID), string(contractID),
	)
	return affectedOrNotFound(res, err)
}

// ReplaceSchedule atomically swaps a contract's terms for the given list.
// Terms without an ID get one; other IDs must already belong to the contract
// (schedule.ErrInvalidTermID otherwise).
func (s *Store) ReplaceSchedule(ctx context.Context, contractID schedule.ContractID, terms []schedule.PaymentTerm) ([]schedule.PaymentTerm, error) {
	out := make([]schedule.PaymentTerm, len(terms))
	copy(out, terms)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = schedule.TermID(uuid.NewString())
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.requireContract(ctx, tx, contractID); err != nil {
			return err
		}
		current, err := s.loadTerms(ctx, tx, contractID)
		if err != nil {
			return err
		}
		if err := schedule.CheckReplacementIDs(current, terms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM payment_terms WHERE contract_id = ?", string(contractID)); err != nil {
			return err
		}
		for i, t := range out {
			if err := insertTerm(ctx, tx, contractID, i, t); err != nil {
				return fmt.Errorf("term %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertTerm(ctx context.Context, q querier, contractID schedule.ContractID, position int, t schedule.PaymentTerm) error {
	query := `
		INSERT INTO payment_terms (contract_id, position, ` + termColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		string(contractID), position,
		string(t.ID), t.TermNumber, t.Description, nullString(t.DueDate),
		t.Amount.String(), t.Percentage.String(),
		string(statusOrUnpaid(t.Status)), t.PaidAmount.String(), nullString(t.PaidDate),
		nullString(t.Notes), nullString(t.DocumentType), nullString(t.FileName),
	)
	return err
}

func scanTerm(row scanner) (schedule.PaymentTerm, error) {
	var t schedule.PaymentTerm
	var id, amount, pct, status, paidAmount string
	var description, dueDate, paidDate, notes, docType, fileName sql.NullString
	err := row.Scan(&id, &t.TermNumber, &description, &dueDate, &amount, &pct,
		&status, &paidAmount, &paidDate, &notes, &docType, &fileName)
	if err != nil {
		return schedule.PaymentTerm{}, err
	}
	t.ID = schedule.TermID(id)
	t.Description = description.String
	t.DueDate = dueDate.String
	t.Amount = parseDecimal(amount)
	t.Percentage = parseDecimal(pct)
	t.Status = schedule.ParseStatus(status)
	t.PaidAmount = parseDecimal(paidAmount)
	t.PaidDate = paidDate.String
	t.Notes = notes.String
	t.DocumentType = docType.String
	t.FileName = fileName.String
	return t, nil
}

func (s *Store) requireContract(ctx context.Context, q querier, id schedule.ContractID) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM contracts WHERE id = ?", string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return schedule.ErrContractNotFound
	}
	return err
}

// =============================================================================
// RULE SETS
// =============================================================================

// RuleSetRecord is one stored revision of the validation rules.
type RuleSetRecord struct {
	ID         int64
	Version    string
	ConfigJSON string
	CreatedAt  time.Time
}

// SaveRules appends a rule set revision. Older revisions are kept.
func (s *Store) SaveRules(ctx context.Context, version, configJSON string) (RuleSetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO rule_sets (version, config_json, created_at) VALUES (?, ?, ?)",
		version, configJSON, now.Format(time.RFC3339))
	if err != nil {
		return RuleSetRecord{}, err
	}
	id, _ := res.LastInsertId()
	return RuleSetRecord{ID: id, Version: version, ConfigJSON: configJSON, CreatedAt: now.Truncate(time.Second)}, nil
}

// LatestRules returns the most recent rule set, or nil if none was saved.
func (s *Store) LatestRules(ctx context.Context) (*RuleSetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r RuleSetRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, version, config_json, created_at FROM rule_sets ORDER BY id DESC LIMIT 1",
	).Scan(&r.ID, &r.Version, &r.ConfigJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

// RulesHistory returns stored rule revisions, newest first.
func (s *Store) RulesHistory(ctx context.Context, limit int) ([]RuleSetRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, config_json, created_at FROM rule_sets ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RuleSetRecord
	for rows.Next() {
		var r RuleSetRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Version, &r.ConfigJSON, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

// SweepRun records one execution of the overdue sweeper.
type SweepRun struct {
	ID          string
	Status      string // running, completed, failed
	Marked      int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// SaveSweepRun inserts or updates a sweep run.
func (s *Store) SaveSweepRun(ctx context.Context, r SweepRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt *string
	if r.CompletedAt != nil {
		v := r.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_runs (id, status, marked, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			marked = excluded.marked,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		r.ID, r.Status, r.Marked, nullString(r.Error),
		r.StartedAt.UTC().Format(time.RFC3339), completedAt,
	)
	return err
}

// GetSweepRuns returns recent sweep runs, newest first.
func (s *Store) GetSweepRuns(ctx context.Context, limit int) ([]SweepRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, marked, error, started_at, completed_at
		FROM sweep_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SweepRun
	for rows.Next() {
		var r SweepRun
		var errMsg, completedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Status, &r.Marked, &errMsg, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		r.Error = errMsg.String
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(time.RFC3339, completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Used when loading demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payment_terms", "contracts", "sweep_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a database transaction under the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func statusOrUnpaid(st schedule.PaymentStatus) schedule.PaymentStatus {
	if st.Valid() {
		return st
	}
	return schedule.StatusUnpaid
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrTermNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var msg string
	if err != nil {
		msg = err.Error()
	}
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
