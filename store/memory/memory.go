// Package memory provides an in-memory ledger.TxStore for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hrkit/leave-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	employees map[ledger.EmployeeID]ledger.Employee
	tranches  map[ledger.TrancheID]*ledger.GrantTranche
	byOwner   map[ledger.EmployeeID][]ledger.TrancheID
	events    map[ledger.UsageEventID]*ledger.UsageEvent
	nextSeq   int64
}

func New() *Store {
	return &Store{
		employees: make(map[ledger.EmployeeID]ledger.Employee),
		tranches:  make(map[ledger.TrancheID]*ledger.GrantTranche),
		byOwner:   make(map[ledger.EmployeeID][]ledger.TrancheID),
		events:    make(map[ledger.UsageEventID]*ledger.UsageEvent),
	}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (m *Store) SaveEmployee(_ context.Context, emp ledger.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Store) GetEmployee(_ context.Context, id ledger.EmployeeID) (*ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (m *Store) ListEmployees(_ context.Context) ([]ledger.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// TRANCHES
// =============================================================================

func (m *Store) AddTranche(_ context.Context, t *ledger.GrantTranche) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addTrancheLocked(t)
}

func (m *Store) addTrancheLocked(t *ledger.GrantTranche) error {
	if t.Granted.IsNegative() {
		return fmt.Errorf("%w: granted amount is negative", ledger.ErrInvalidAmount)
	}
	m.nextSeq++
	t.Seq = m.nextSeq
	if t.ID == "" {
		t.ID = ledger.TrancheID(fmt.Sprintf("tr-%d", t.Seq))
	}
	cp := *t
	m.tranches[t.ID] = &cp
	m.byOwner[t.EmployeeID] = append(m.byOwner[t.EmployeeID], t.ID)
	return nil
}

func (m *Store) TranchesByEmployee(_ context.Context, id ledger.EmployeeID) ([]ledger.GrantTranche, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tranchesLocked(id), nil
}

func (m *Store) tranchesLocked(id ledger.EmployeeID) []ledger.GrantTranche {
	var result []ledger.GrantTranche
	for _, tid := range m.byOwner[id] {
		result = append(result, *m.tranches[tid])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].GrantDate.Equal(result[j].GrantDate) {
			return result[i].GrantDate.Before(result[j].GrantDate)
		}
		return result[i].Seq < result[j].Seq
	})
	return result
}

func (m *Store) OpenTranches(_ context.Context, id ledger.EmployeeID, asOf ledger.Date) ([]ledger.GrantTranche, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.GrantTranche
	for _, t := range m.tranchesLocked(id) {
		if t.IsOpen(asOf) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *Store) DebitTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(id, amount)
}

func (m *Store) debitLocked(id ledger.TrancheID, amount ledger.Days) error {
	t, ok := m.tranches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTrancheNotFound, id)
	}
	next := t.Remaining.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: debit %s exceeds remaining %s on %s",
			ledger.ErrInsufficientBalance, amount, t.Remaining, id)
	}
	t.Remaining = next
	return nil
}

func (m *Store) CreditTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditLocked(id, amount)
}

func (m *Store) creditLocked(id ledger.TrancheID, amount ledger.Days) error {
	t, ok := m.tranches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTrancheNotFound, id)
	}
	next := t.Remaining.Add(amount)
	if next.GreaterThan(t.Granted) {
		return fmt.Errorf("credit %s would exceed granted %s on %s", amount, t.Granted, id)
	}
	t.Remaining = next
	return nil
}

func (m *Store) ExpireTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireLocked(id, amount)
}

func (m *Store) expireLocked(id ledger.TrancheID, amount ledger.Days) error {
	t, ok := m.tranches[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrTrancheNotFound, id)
	}
	if amount.GreaterThan(t.Remaining) {
		return fmt.Errorf("expire %s exceeds remaining %s on %s", amount, t.Remaining, id)
	}
	t.Remaining = t.Remaining.Sub(amount)
	t.Expired = t.Expired.Add(amount)
	return nil
}

// =============================================================================
// USAGE EVENTS
// =============================================================================

func (m *Store) SaveUsageEvent(_ context.Context, ev ledger.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEventLocked(ev)
}

func (m *Store) saveEventLocked(ev ledger.UsageEvent) error {
	cp := ev
	cp.Debits = append([]ledger.TrancheDebit(nil), ev.Debits...)
	m.events[ev.ID] = &cp
	return nil
}

func (m *Store) GetUsageEvent(_ context.Context, id ledger.UsageEventID) (*ledger.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	cp.Debits = append([]ledger.TrancheDebit(nil), ev.Debits...)
	return &cp, nil
}

func (m *Store) UsageEventsInRange(_ context.Context, id ledger.EmployeeID, from, to ledger.Date) ([]ledger.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.UsageEvent
	for _, ev := range m.events {
		if ev.EmployeeID != id {
			continue
		}
		if from.BeforeOrEqual(ev.UseDate) && ev.UseDate.BeforeOrEqual(to) {
			cp := *ev
			cp.Debits = append([]ledger.TrancheDebit(nil), ev.Debits...)
			result = append(result, cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UseDate.Before(result[j].UseDate)
	})
	return result, nil
}

func (m *Store) MarkReversed(_ context.Context, id ledger.UsageEventID, at ledger.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markReversedLocked(id, at)
}

func (m *Store) markReversedLocked(id ledger.UsageEventID, at ledger.Date) error {
	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUsageEventNotFound, id)
	}
	if ev.ReversedAt != nil {
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyReversed, id)
	}
	ev.ReversedAt = &at
	return nil
}

// =============================================================================
// TRANSACTION BOUNDARY
// =============================================================================

// WithTx executes fn against a snapshot-backed view: on error the store is
// restored, so a failed deduction never leaves a tranche partially debited.
func (m *Store) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshotLocked()
	if err := fn(&txView{parent: m}); err != nil {
		m.restoreLocked(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	employees map[ledger.EmployeeID]ledger.Employee
	tranches  map[ledger.TrancheID]*ledger.GrantTranche
	byOwner   map[ledger.EmployeeID][]ledger.TrancheID
	events    map[ledger.UsageEventID]*ledger.UsageEvent
	nextSeq   int64
}

func (m *Store) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		employees: make(map[ledger.EmployeeID]ledger.Employee, len(m.employees)),
		tranches:  make(map[ledger.TrancheID]*ledger.GrantTranche, len(m.tranches)),
		byOwner:   make(map[ledger.EmployeeID][]ledger.TrancheID, len(m.byOwner)),
		events:    make(map[ledger.UsageEventID]*ledger.UsageEvent, len(m.events)),
		nextSeq:   m.nextSeq,
	}
	for id, emp := range m.employees {
		snap.employees[id] = emp
	}
	for id, t := range m.tranches {
		cp := *t
		snap.tranches[id] = &cp
	}
	for id, tids := range m.byOwner {
		snap.byOwner[id] = append([]ledger.TrancheID(nil), tids...)
	}
	for id, ev := range m.events {
		cp := *ev
		cp.Debits = append([]ledger.TrancheDebit(nil), ev.Debits...)
		snap.events[id] = &cp
	}
	return snap
}

func (m *Store) restoreLocked(snap memorySnapshot) {
	m.employees = snap.employees
	m.tranches = snap.tranches
	m.byOwner = snap.byOwner
	m.events = snap.events
	m.nextSeq = snap.nextSeq
}

// txView routes store calls back to the locked parent. The parent mutex is
// already held for the duration of WithTx.
type txView struct {
	parent *Store
}

func (tv *txView) SaveEmployee(_ context.Context, emp ledger.Employee) error {
	tv.parent.employees[emp.ID] = emp
	return nil
}

func (tv *txView) GetEmployee(_ context.Context, id ledger.EmployeeID) (*ledger.Employee, error) {
	emp, ok := tv.parent.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (tv *txView) ListEmployees(_ context.Context) ([]ledger.Employee, error) {
	result := make([]ledger.Employee, 0, len(tv.parent.employees))
	for _, emp := range tv.parent.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txView) AddTranche(_ context.Context, t *ledger.GrantTranche) error {
	return tv.parent.addTrancheLocked(t)
}

func (tv *txView) TranchesByEmployee(_ context.Context, id ledger.EmployeeID) ([]ledger.GrantTranche, error) {
	return tv.parent.tranchesLocked(id), nil
}

func (tv *txView) OpenTranches(_ context.Context, id ledger.EmployeeID, asOf ledger.Date) ([]ledger.GrantTranche, error) {
	var result []ledger.GrantTranche
	for _, t := range tv.parent.tranchesLocked(id) {
		if t.IsOpen(asOf) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (tv *txView) DebitTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return tv.parent.debitLocked(id, amount)
}

func (tv *txView) CreditTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return tv.parent.creditLocked(id, amount)
}

func (tv *txView) ExpireTranche(_ context.Context, id ledger.TrancheID, amount ledger.Days) error {
	return tv.parent.expireLocked(id, amount)
}

func (tv *txView) SaveUsageEvent(_ context.Context, ev ledger.UsageEvent) error {
	return tv.parent.saveEventLocked(ev)
}

func (tv *txView) GetUsageEvent(ctx context.Context, id ledger.UsageEventID) (*ledger.UsageEvent, error) {
	ev, ok := tv.parent.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	cp.Debits = append([]ledger.TrancheDebit(nil), ev.Debits...)
	return &cp, nil
}

func (tv *txView) UsageEventsInRange(_ context.Context, id ledger.EmployeeID, from, to ledger.Date) ([]ledger.UsageEvent, error) {
	var result []ledger.UsageEvent
	for _, ev := range tv.parent.events {
		if ev.EmployeeID != id {
			continue
		}
		if from.BeforeOrEqual(ev.UseDate) && ev.UseDate.BeforeOrEqual(to) {
			result = append(result, *ev)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UseDate.Before(result[j].UseDate)
	})
	return result, nil
}

func (tv *txView) MarkReversed(_ context.Context, id ledger.UsageEventID, at ledger.Date) error {
	return tv.parent.markReversedLocked(id, at)
}

// Compile-time interface checks.
var (
	_ ledger.TxStore = (*Store)(nil)
	_ ledger.Store   = (*txView)(nil)
)
