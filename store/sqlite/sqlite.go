/*
Package sqlite provides the SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Durable storage for employees, grant tranches, and usage events. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:     Identity plus hire date (seniority source)
  tranches:      Grant tranches; remaining/expired move, granted never does
  usage_events:  Approved leave deductions (append-only, reversal-stamped)
  usage_debits:  Tranche attribution rows per usage event
  rollover_runs: Per-employee year-end outcomes for the operator

MUTATION DISCIPLINE:
  Tranche rows only ever move amount between remaining and expired (or debit
  remaining); granted is written once. A CHECK constraint keeps remaining
  from going negative even if a caller bypasses the engine. Usage events are
  never updated except to stamp reversed_at exactly once.

CONCURRENCY:
  WAL mode for reader/writer concurrency plus a process-level RWMutex. The
  per-employee write exclusivity lives above this layer in the facade.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hrkit/leave-ledger/ledger"
)

// Store implements ledger.TxStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at the given path and migrates the
// schema. Use ":memory:" for an in-memory database.
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
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Grant tranches. seq preserves insertion order for stable deduction ties.
	CREATE TABLE IF NOT EXISTS tranches (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		fiscal_year INTEGER NOT NULL,
		kind TEXT NOT NULL DEFAULT 'grant',
		grant_date TEXT NOT NULL,
		expiry_date TEXT NOT NULL,
		granted TEXT NOT NULL,
		remaining TEXT NOT NULL,
		expired TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CHECK (CAST(remaining AS REAL) >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_tranches_employee
		ON tranches(employee_id, grant_date, seq);
	CREATE INDEX IF NOT EXISTS idx_tranches_fiscal_year
		ON tranches(employee_id, fiscal_year);
	CREATE INDEX IF NOT EXISTS idx_tranches_expiry
		ON tranches(expiry_date);

	-- Usage events: approved leave deductions. reversed_at set at most once.
	CREATE TABLE IF NOT EXISTS usage_events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		use_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT,
		reversed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_usage_events_employee_date
		ON usage_events(employee_id, use_date);

	-- Tranche attribution per usage event.
	CREATE TABLE IF NOT EXISTS usage_debits (
		event_id TEXT NOT NULL REFERENCES usage_events(id),
		position INTEGER NOT NULL,
		tranche_id TEXT NOT NULL REFERENCES tranches(id),
		amount TEXT NOT NULL,
		PRIMARY KEY (event_id, position)
	);

	-- Year-end rollover outcomes, for the operator's retry view.
	-- id is derived from (fiscal_year, employee_id), so retries upsert.
	CREATE TABLE IF NOT EXISTS rollover_runs (
		id TEXT PRIMARY KEY,
		fiscal_year INTEGER NOT NULL,
		employee_id TEXT NOT NULL,
		granted TEXT NOT NULL,
		expired TEXT NOT NULL,
		error TEXT,
		completed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rollover_runs_year
		ON rollover_runs(fiscal_year);
	`
	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, emp)
}

func saveEmployee(ctx context.Context, q querier, emp ledger.Employee) error {
	query := `
		INSERT INTO employees (id, name, hire_date, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hire_date = excluded.hire_date
	`
	_, err := q.ExecContext(ctx, query,
		string(emp.ID), emp.Name, emp.HireDate.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id ledger.EmployeeID) (*ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q querier, id ledger.EmployeeID) (*ledger.Employee, error) {
	var emp ledger.Employee
	var empID, hireDate string

	err := q.QueryRowContext(ctx,
		"SELECT id, name, hire_date FROM employees WHERE id = ?", string(id),
	).Scan(&empID, &emp.Name, &hireDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emp.ID = ledger.EmployeeID(empID)
	emp.HireDate, err = ledger.ParseDate(hireDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hire date for %s: %w", id, err)
	}
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]ledger.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, q querier) ([]ledger.Employee, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, hire_date FROM employees ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []ledger.Employee
	for rows.Next() {
		var emp ledger.Employee
		var empID, hireDate string
		if err := rows.Scan(&empID, &emp.Name, &hireDate); err != nil {
			return nil, err
		}
		emp.ID = ledger.EmployeeID(empID)
		emp.HireDate, err = ledger.ParseDate(hireDate)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// TRANCHES
// =============================================================================

func (s *Store) AddTranche(ctx context.Context, t *ledger.GrantTranche) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addTranche(ctx, s.db, t)
}

func addTranche(ctx context.Context, q querier, t *ledger.GrantTranche) error {
	if t.Granted.IsNegative() {
		return fmt.Errorf("%w: granted amount is negative", ledger.ErrInvalidAmount)
	}

	var maxSeq sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(seq) FROM tranches").Scan(&maxSeq); err != nil {
		return err
	}
	t.Seq = maxSeq.Int64 + 1
	if t.ID == "" {
		t.ID = ledger.TrancheID(fmt.Sprintf("tr-%d", t.Seq))
	}

	query := `
		INSERT INTO tranches
		(id, seq, employee_id, fiscal_year, kind, grant_date, expiry_date,
		 granted, remaining, expired, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		string(t.ID), t.Seq, string(t.EmployeeID), t.FiscalYear, string(t.Kind),
		t.GrantDate.String(), t.ExpiryDate.String(),
		t.Granted.String(), t.Remaining.String(), t.Expired.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

const trancheColumns = `id, seq, employee_id, fiscal_year, kind, grant_date, expiry_date,
	granted, remaining, expired`

func (s *Store) TranchesByEmployee(ctx context.Context, id ledger.EmployeeID) ([]ledger.GrantTranche, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tranchesByEmployee(ctx, s.db, id)
}

func tranchesByEmployee(ctx context.Context, q querier, id ledger.EmployeeID) ([]ledger.GrantTranche, error) {
	query := `
		SELECT ` + trancheColumns + `
		FROM tranches
		WHERE employee_id = ?
		ORDER BY grant_date ASC, seq ASC
	`
	return queryTranches(ctx, q, query, string(id))
}

func (s *Store) OpenTranches(ctx context.Context, id ledger.EmployeeID, asOf ledger.Date) ([]ledger.GrantTranche, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return openTranches(ctx, s.db, id, asOf)
}

func openTranches(ctx context.Context, q querier, id ledger.EmployeeID, asOf ledger.Date) ([]ledger.GrantTranche, error) {
	query := `
		SELECT ` + trancheColumns + `
		FROM tranches
		WHERE employee_id = ?
		  AND CAST(remaining AS REAL) > 0
		  AND expiry_date >= ?
		ORDER BY grant_date ASC, seq ASC
	`
	return queryTranches(ctx, q, query, string(id), asOf.String())
}

func queryTranches(ctx context.Context, q querier, query string, args ...any) ([]ledger.GrantTranche, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tranches: %w", err)
	}
	defer rows.Close()

	var tranches []ledger.GrantTranche
	for rows.Next() {
		t, err := scanTranche(rows)
		if err != nil {
			return nil, err
		}
		tranches = append(tranches, t)
	}
	return tranches, rows.Err()
}

func scanTranche(rows *sql.Rows) (ledger.GrantTranche, error) {
	var (
		t                           ledger.GrantTranche
		id, empID, kind             string
		grantDate, expiryDate       string
		granted, remaining, expired string
	)

	err := rows.Scan(&id, &t.Seq, &empID, &t.FiscalYear, &kind,
		&grantDate, &expiryDate, &granted, &remaining, &expired)
	if err != nil {
		return t, fmt.Errorf("failed to scan tranche: %w", err)
	}

	t.ID = ledger.TrancheID(id)
	t.EmployeeID = ledger.EmployeeID(empID)
	t.Kind = ledger.TrancheKind(kind)
	if t.GrantDate, err = ledger.ParseDate(grantDate); err != nil {
		return t, err
	}
	if t.ExpiryDate, err = ledger.ParseDate(expiryDate); err != nil {
		return t, err
	}
	t.Granted = ledger.MustParseDays(granted)
	t.Remaining = ledger.MustParseDays(remaining)
	t.Expired = ledger.MustParseDays(expired)
	return t, nil
}

func (s *Store) DebitTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debitTranche(ctx, s.db, id, amount)
}

func debitTranche(ctx context.Context, q querier, id ledger.TrancheID, amount ledger.Days) error {
	remaining, err := trancheRemaining(ctx, q, id)
	if err != nil {
		return err
	}
	next := remaining.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: debit %s exceeds remaining %s on %s",
			ledger.ErrInsufficientBalance, amount, remaining, id)
	}
	_, err = q.ExecContext(ctx,
		"UPDATE tranches SET remaining = ? WHERE id = ?", next.String(), string(id))
	return err
}

func (s *Store) CreditTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return creditTranche(ctx, s.db, id, amount)
}

func creditTranche(ctx context.Context, q querier, id ledger.TrancheID, amount ledger.Days) error {
	remaining, err := trancheRemaining(ctx, q, id)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		"UPDATE tranches SET remaining = ? WHERE id = ?",
		remaining.Add(amount).String(), string(id))
	return err
}

func (s *Store) ExpireTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return expireTranche(ctx, s.db, id, amount)
}

func expireTranche(ctx context.Context, q querier, id ledger.TrancheID, amount ledger.Days) error {
	var remainingStr, expiredStr string
	err := q.QueryRowContext(ctx,
		"SELECT remaining, expired FROM tranches WHERE id = ?", string(id),
	).Scan(&remainingStr, &expiredStr)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ledger.ErrTrancheNotFound, id)
	}
	if err != nil {
		return err
	}

	remaining := ledger.MustParseDays(remainingStr)
	expired := ledger.MustParseDays(expiredStr)
	if amount.GreaterThan(remaining) {
		return fmt.Errorf("expire %s exceeds remaining %s on %s", amount, remaining, id)
	}

	_, err = q.ExecContext(ctx,
		"UPDATE tranches SET remaining = ?, expired = ? WHERE id = ?",
		remaining.Sub(amount).String(), expired.Add(amount).String(), string(id))
	return err
}

func trancheRemaining(ctx context.Context, q querier, id ledger.TrancheID) (ledger.Days, error) {
	var remaining string
	err := q.QueryRowContext(ctx,
		"SELECT remaining FROM tranches WHERE id = ?", string(id)).Scan(&remaining)
	if err == sql.ErrNoRows {
		return ledger.ZeroDays(), fmt.Errorf("%w: %s", ledger.ErrTrancheNotFound, id)
	}
	if err != nil {
		return ledger.ZeroDays(), err
	}
	return ledger.MustParseDays(remaining), nil
}

// =============================================================================
// USAGE EVENTS
// =============================================================================

func (s *Store) SaveUsageEvent(ctx context.Context, ev ledger.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUsageEvent(ctx, s.db, ev)
}

func saveUsageEvent(ctx context.Context, q querier, ev ledger.UsageEvent) error {
	var reversedAt sql.NullString
	if ev.ReversedAt != nil {
		reversedAt = sql.NullString{String: ev.ReversedAt.String(), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO usage_events (id, employee_id, use_date, amount, reason, reversed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(ev.ID), string(ev.EmployeeID), ev.UseDate.String(),
		ev.Amount.String(), ev.Reason, reversedAt,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save usage event: %w", err)
	}

	for i, d := range ev.Debits {
		_, err := q.ExecContext(ctx, `
			INSERT INTO usage_debits (event_id, position, tranche_id, amount)
			VALUES (?, ?, ?, ?)`,
			string(ev.ID), i, string(d.TrancheID), d.Amount.String())
		if err != nil {
			return fmt.Errorf("failed to save usage attribution: %w", err)
		}
	}
	return nil
}

func (s *Store) GetUsageEvent(ctx context.Context, id ledger.UsageEventID) (*ledger.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUsageEvent(ctx, s.db, id)
}

func getUsageEvent(ctx context.Context, q querier, id ledger.UsageEventID) (*ledger.UsageEvent, error) {
	var (
		ev                        ledger.UsageEvent
		evID, empID, useDate, amt string
		reason, reversedAt        sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, employee_id, use_date, amount, reason, reversed_at
		FROM usage_events WHERE id = ?`, string(id),
	).Scan(&evID, &empID, &useDate, &amt, &reason, &reversedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ev.ID = ledger.UsageEventID(evID)
	ev.EmployeeID = ledger.EmployeeID(empID)
	if ev.UseDate, err = ledger.ParseDate(useDate); err != nil {
		return nil, err
	}
	ev.Amount = ledger.MustParseDays(amt)
	ev.Reason = reason.String
	if reversedAt.Valid {
		d, err := ledger.ParseDate(reversedAt.String)
		if err != nil {
			return nil, err
		}
		ev.ReversedAt = &d
	}

	if ev.Debits, err = loadDebits(ctx, q, id); err != nil {
		return nil, err
	}
	return &ev, nil
}

func loadDebits(ctx context.Context, q querier, id ledger.UsageEventID) ([]ledger.TrancheDebit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT tranche_id, amount FROM usage_debits
		WHERE event_id = ? ORDER BY position ASC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debits []ledger.TrancheDebit
	for rows.Next() {
		var trancheID, amt string
		if err := rows.Scan(&trancheID, &amt); err != nil {
			return nil, err
		}
		debits = append(debits, ledger.TrancheDebit{
			TrancheID: ledger.TrancheID(trancheID),
			Amount:    ledger.MustParseDays(amt),
		})
	}
	return debits, rows.Err()
}

func (s *Store) UsageEventsInRange(ctx context.Context, id ledger.EmployeeID, from, to ledger.Date) ([]ledger.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return usageEventsInRange(ctx, s.db, id, from, to)
}

func usageEventsInRange(ctx context.Context, q querier, id ledger.EmployeeID, from, to ledger.Date) ([]ledger.UsageEvent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM usage_events
		WHERE employee_id = ? AND use_date >= ? AND use_date <= ?
		ORDER BY use_date ASC, created_at ASC`,
		string(id), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []ledger.UsageEventID
	for rows.Next() {
		var evID string
		if err := rows.Scan(&evID); err != nil {
			return nil, err
		}
		ids = append(ids, ledger.UsageEventID(evID))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	events := make([]ledger.UsageEvent, 0, len(ids))
	for _, evID := range ids {
		ev, err := getUsageEvent(ctx, q, evID)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

func (s *Store) MarkReversed(ctx context.Context, id ledger.UsageEventID, at ledger.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markReversed(ctx, s.db, id, at)
}

func markReversed(ctx context.Context, q querier, id ledger.UsageEventID, at ledger.Date) error {
	res, err := q.ExecContext(ctx, `
		UPDATE usage_events SET reversed_at = ?
		WHERE id = ? AND reversed_at IS NULL`,
		at.String(), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		ev, err := getUsageEvent(ctx, q, id)
		if err != nil {
			return err
		}
		if ev == nil {
			return fmt.Errorf("%w: %s", ledger.ErrUsageEventNotFound, id)
		}
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyReversed, id)
	}
	return nil
}

// =============================================================================
// TRANSACTION BOUNDARY
// =============================================================================

// WithTx executes fn within a database transaction. Any error rolls back
// every write issued through the transactional view.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveEmployee(ctx context.Context, emp ledger.Employee) error {
	return saveEmployee(ctx, ts.tx, emp)
}

func (ts *txStore) GetEmployee(ctx context.Context, id ledger.EmployeeID) (*ledger.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]ledger.Employee, error) {
	return listEmployees(ctx, ts.tx)
}

func (ts *txStore) AddTranche(ctx context.Context, t *ledger.GrantTranche) error {
	return addTranche(ctx, ts.tx, t)
}

func (ts *txStore) TranchesByEmployee(ctx context.Context, id ledger.EmployeeID) ([]ledger.GrantTranche, error) {
	return tranchesByEmployee(ctx, ts.tx, id)
}

func (ts *txStore) OpenTranches(ctx context.Context, id ledger.EmployeeID, asOf ledger.Date) ([]ledger.GrantTranche, error) {
	return openTranches(ctx, ts.tx, id, asOf)
}

func (ts *txStore) DebitTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return debitTranche(ctx, ts.tx, id, amount)
}

func (ts *txStore) CreditTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return creditTranche(ctx, ts.tx, id, amount)
}

func (ts *txStore) ExpireTranche(ctx context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return expireTranche(ctx, ts.tx, id, amount)
}

func (ts *txStore) SaveUsageEvent(ctx context.Context, ev ledger.UsageEvent) error {
	return saveUsageEvent(ctx, ts.tx, ev)
}

func (ts *txStore) GetUsageEvent(ctx context.Context, id ledger.UsageEventID) (*ledger.UsageEvent, error) {
	return getUsageEvent(ctx, ts.tx, id)
}

func (ts *txStore) UsageEventsInRange(ctx context.Context, id ledger.EmployeeID, from, to ledger.Date) ([]ledger.UsageEvent, error) {
	return usageEventsInRange(ctx, ts.tx, id, from, to)
}

func (ts *txStore) MarkReversed(ctx context.Context, id ledger.UsageEventID, at ledger.Date) error {
	return markReversed(ctx, ts.tx, id, at)
}

// =============================================================================
// ROLLOVER RUN AUDIT
// =============================================================================

// RolloverRun is one employee's recorded year-end outcome.
type RolloverRun struct {
	ID          string
	FiscalYear  int
	EmployeeID  string
	Granted     string
	Expired     string
	Error       string
	CompletedAt time.Time
}

// SaveRolloverRuns records a batch report, overwriting earlier attempts for
// the same (year, employee) so retries converge on the final outcome.
func (s *Store) SaveRolloverRuns(ctx context.Context, report ledger.RolloverReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, res := range report.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO rollover_runs (id, fiscal_year, employee_id, granted, expired, error, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				granted = excluded.granted,
				expired = excluded.expired,
				error = excluded.error,
				completed_at = excluded.completed_at`,
			fmt.Sprintf("run-%d-%s", report.FiscalYear, res.EmployeeID),
			report.FiscalYear, string(res.EmployeeID),
			res.Granted.String(), res.Expired.String(), errText, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListRolloverRuns returns recorded outcomes for a fiscal year.
func (s *Store) ListRolloverRuns(ctx context.Context, fiscalYear int) ([]RolloverRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fiscal_year, employee_id, granted, expired, error, completed_at
		FROM rollover_runs WHERE fiscal_year = ? ORDER BY employee_id`, fiscalYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RolloverRun
	for rows.Next() {
		var r RolloverRun
		var completedAt string
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.FiscalYear, &r.EmployeeID, &r.Granted, &r.Expired, &errText, &completedAt); err != nil {
			return nil, err
		}
		r.Error = strings.TrimSpace(errText.String)
		r.CompletedAt, _ = time.Parse(time.RFC3339, completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Compile-time interface checks.
var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = (*txStore)(nil)
)
