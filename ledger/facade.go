/*
facade.go - Single entry point for collaborating subsystems

PURPOSE:
  The Facade is what the leave-request workflow, reporting, and alerting
  layers call. It wires the calculator, deduction engine, carryover
  processor, checker, and watcher over one injected store and clock —
  constructed explicitly per process, no module-level singletons.

CONCURRENCY:
  Mutating operations are exclusive per employee: a keyed mutex guards
  read-modify-write so two concurrent approvals cannot jointly overdraw a
  tranche set. Reads on other employees proceed concurrently; each
  employee's rollover is its own transaction.
*/
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// NOTIFIER - External alerting collaborator
// =============================================================================

// Notifier receives compliance and expiry alerts. Delivery is out of scope;
// the engine hands over immutable values and keeps no history.
type Notifier interface {
	NotifyNonCompliant(ctx context.Context, alert ComplianceAlert)
	NotifyExpiring(ctx context.Context, alert ExpiryAlert)
}

// NopNotifier discards alerts. The default when no collaborator is wired.
type NopNotifier struct{}

func (NopNotifier) NotifyNonCompliant(context.Context, ComplianceAlert) {}
func (NopNotifier) NotifyExpiring(context.Context, ExpiryAlert)         {}

// =============================================================================
// FACADE
// =============================================================================

type Facade struct {
	store     TxStore
	clock     Clock
	notifier  Notifier
	grants    *GrantCalculator
	deduction *DeductionEngine
	carryover *CarryoverProcessor
	checker   *ComplianceChecker
	watcher   *ExpirationWatcher

	// Per-employee write locks. Lazily created, never removed; the set of
	// employees is small relative to the cost of eviction bookkeeping.
	locks sync.Map // EmployeeID -> *sync.Mutex

	// Process-wide usage event sequence. The per-employee lock does not
	// serialize approvals across employees, so a timestamp alone could
	// collide.
	eventSeq atomic.Int64
}

// FacadeOption customizes construction.
type FacadeOption func(*Facade)

// WithClock pins the facade's calendar. For tests and replays.
func WithClock(c Clock) FacadeOption {
	return func(f *Facade) { f.clock = c }
}

// WithNotifier wires the alerting collaborator.
func WithNotifier(n Notifier) FacadeOption {
	return func(f *Facade) { f.notifier = n }
}

func NewFacade(store TxStore, opts ...FacadeOption) *Facade {
	f := &Facade{
		store:    store,
		clock:    SystemClock{},
		notifier: NopNotifier{},
		grants:   NewGrantCalculator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.deduction = NewDeductionEngine(store)
	f.carryover = NewCarryoverProcessor(store, f.grants)
	f.checker = NewComplianceChecker(store)
	f.watcher = NewExpirationWatcher(store, f.clock)
	return f
}

func (f *Facade) lockEmployee(id EmployeeID) func() {
	v, _ := f.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// =============================================================================
// EMPLOYEE REGISTRY
// =============================================================================

func (f *Facade) RegisterEmployee(ctx context.Context, emp Employee) error {
	if emp.ID == "" {
		return fmt.Errorf("employee id must not be empty")
	}
	return f.store.SaveEmployee(ctx, emp)
}

func (f *Facade) GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error) {
	emp, err := f.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	return emp, nil
}

func (f *Facade) ListEmployees(ctx context.Context) ([]Employee, error) {
	return f.store.ListEmployees(ctx)
}

// =============================================================================
// GRANTS AND DEDUCTION
// =============================================================================

// GrantRecommendation returns the statutory grant the employee would earn
// at the given date.
func (f *Facade) GrantRecommendation(ctx context.Context, id EmployeeID, asOf Date) (int, error) {
	emp, err := f.GetEmployee(ctx, id)
	if err != nil {
		return 0, err
	}
	return f.grants.GrantedDaysAt(*emp, asOf), nil
}

// RecordApprovedLeave deducts an approved leave request and returns the
// usage event including its tranche attribution. Fails atomically with
// InsufficientBalance when the open tranches cannot cover it.
func (f *Facade) RecordApprovedLeave(ctx context.Context, id EmployeeID, useDate Date, amount Days, reason string) (UsageEvent, error) {
	if _, err := f.GetEmployee(ctx, id); err != nil {
		return UsageEvent{}, err
	}

	unlock := f.lockEmployee(id)
	defer unlock()

	ev := UsageEvent{
		ID:         UsageEventID(fmt.Sprintf("use-%d-%d", time.Now().UnixNano(), f.eventSeq.Add(1))),
		EmployeeID: id,
		UseDate:    useDate,
		Amount:     amount,
		Reason:     reason,
	}
	return f.deduction.Apply(ctx, ev)
}

// ReverseLeave applies a compensating reversal for a previously-recorded
// usage event (e.g. the approved request was later cancelled).
func (f *Facade) ReverseLeave(ctx context.Context, eventID UsageEventID) error {
	ev, err := f.store.GetUsageEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev == nil {
		return fmt.Errorf("%w: %s", ErrUsageEventNotFound, eventID)
	}

	unlock := f.lockEmployee(ev.EmployeeID)
	defer unlock()

	return f.deduction.Reverse(ctx, eventID, f.clock.Today())
}

// GrantTrancheDirect adds a tranche outside the rollover batch (onboarding
// an employee mid-year, seeding historical data).
func (f *Facade) GrantTrancheDirect(ctx context.Context, tranche *GrantTranche) error {
	if _, err := f.GetEmployee(ctx, tranche.EmployeeID); err != nil {
		return err
	}
	if tranche.Kind == "" {
		tranche.Kind = TrancheGrant
	}
	if tranche.ExpiryDate.IsZero() {
		tranche.ExpiryDate = StatutoryExpiry(tranche.GrantDate)
	}

	unlock := f.lockEmployee(tranche.EmployeeID)
	defer unlock()

	return f.store.AddTranche(ctx, tranche)
}

// =============================================================================
// ROLLOVER
// =============================================================================

// RunYearEndRollover processes the transition into the given fiscal year for
// all employees. Partial failures are reported per employee.
func (f *Facade) RunYearEndRollover(ctx context.Context, fiscalYear int) (RolloverReport, error) {
	return f.carryover.Run(ctx, fiscalYear)
}

// =============================================================================
// READ-ONLY VIEWS
// =============================================================================

// Balance returns the derived snapshot for one employee and fiscal year.
func (f *Facade) Balance(ctx context.Context, id EmployeeID, fiscalYear int) (BalanceSnapshot, error) {
	if _, err := f.GetEmployee(ctx, id); err != nil {
		return BalanceSnapshot{}, err
	}
	return SnapshotFor(ctx, f.store, id, fiscalYear, f.clock.Today())
}

// ComplianceReport derives compliance records for every employee for the
// fiscal year, forwarding NON_COMPLIANT alerts to the notifier.
func (f *Facade) ComplianceReport(ctx context.Context, fiscalYear int) ([]ComplianceRecord, error) {
	employees, err := f.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ComplianceRecord, 0, len(employees))
	for _, emp := range employees {
		record, alert, err := f.checker.Check(ctx, emp.ID, fiscalYear)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			f.notifier.NotifyNonCompliant(ctx, *alert)
		}
		records = append(records, record)
	}
	return records, nil
}

// ExpiringSoon scans for balance expiring within the window, forwarding each
// alert to the notifier. A positive fiscalYear restricts the scan to that
// grant cohort; zero or negative scans every cohort.
func (f *Facade) ExpiringSoon(ctx context.Context, fiscalYear, windowDays int) ([]ExpiryAlert, error) {
	alerts, err := f.watcher.Scan(ctx, fiscalYear, windowDays)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		f.notifier.NotifyExpiring(ctx, a)
	}
	return alerts, nil
}

// =============================================================================
// ANNUAL LEDGER (年次有給休暇管理簿)
// =============================================================================

// LedgerRow is one employee's row in the statutory annual ledger. Field
// order mirrors the export contract: 社員番号, 氏名, 基準日, 付与日数,
// 取得日, 取得日数, 残日数, 年度.
type LedgerRow struct {
	EmployeeID EmployeeID // 社員番号
	Name       string     // 氏名
	GrantDate  Date       // 基準日
	Granted    Days       // 付与日数
	UsageDates []Date     // 取得日
	Used       Days       // 取得日数
	Remaining  Days       // 残日数
	FiscalYear int        // 年度
}

// AnnualLedger returns per-employee ledger rows for the fiscal year, ordered
// by employee ID.
func (f *Facade) AnnualLedger(ctx context.Context, fiscalYear int) ([]LedgerRow, error) {
	employees, err := f.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })

	today := f.clock.Today()
	rows := make([]LedgerRow, 0, len(employees))
	for _, emp := range employees {
		snap, err := SnapshotFor(ctx, f.store, emp.ID, fiscalYear, today)
		if err != nil {
			return nil, err
		}

		events, err := f.store.UsageEventsInRange(ctx, emp.ID, FiscalYearStart(fiscalYear), FiscalYearEnd(fiscalYear))
		if err != nil {
			return nil, err
		}
		var usageDates []Date
		used := ZeroDays()
		for _, ev := range events {
			if ev.IsReversed() {
				continue
			}
			usageDates = append(usageDates, ev.UseDate)
			used = used.Add(ev.Amount)
		}

		rows = append(rows, LedgerRow{
			EmployeeID: emp.ID,
			Name:       emp.Name,
			GrantDate:  FiscalYearStart(fiscalYear),
			Granted:    snap.Granted,
			UsageDates: usageDates,
			Used:       used,
			Remaining:  snap.TotalBalance,
			FiscalYear: fiscalYear,
		})
	}
	return rows, nil
}
