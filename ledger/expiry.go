/*
expiry.go - Tranche expiry watching

PURPOSE:
  Flags tranches whose two-year window closes soon so the balance can be
  spent instead of forfeited. Read-only: scans open tranches inside a
  warning window and returns alert values; it never mutates the store or
  retains alert history.

SEVERITY:
  WARNING   more than 7 days until expiry
  CRITICAL  7 days or fewer
*/
package ledger

import "context"

// =============================================================================
// EXPIRY ALERTS
// =============================================================================

type ExpirySeverity string

const (
	ExpiryWarning  ExpirySeverity = "WARNING"
	ExpiryCritical ExpirySeverity = "CRITICAL"
)

// DefaultExpiryWindowDays is the default look-ahead for expiry scans.
const DefaultExpiryWindowDays = 30

// criticalWithinDays is the WARNING/CRITICAL boundary.
const criticalWithinDays = 7

// ExpiringTranche is one at-risk tranche inside the warning window.
type ExpiringTranche struct {
	TrancheID     TrancheID
	FiscalYear    int
	AtRiskAmount  Days
	ExpiryDate    Date
	DaysToExpiry  int
	Severity      ExpirySeverity
}

// ExpiryAlert is the immutable per-employee alert: total at-risk amount plus
// the tranches behind it. Severity is the worst across tranches.
type ExpiryAlert struct {
	EmployeeID   EmployeeID
	AtRiskAmount Days
	Severity     ExpirySeverity
	Tranches     []ExpiringTranche
}

// =============================================================================
// EXPIRATION WATCHER
// =============================================================================

type ExpirationWatcher struct {
	store Store
	clock Clock
}

func NewExpirationWatcher(store Store, clock Clock) *ExpirationWatcher {
	return &ExpirationWatcher{store: store, clock: clock}
}

// Scan returns one alert per employee holding open balance that expires
// between today and today + windowDays. A positive fiscalYear restricts the
// scan to that grant cohort; zero or negative scans every cohort. A
// non-positive window uses the default.
func (w *ExpirationWatcher) Scan(ctx context.Context, fiscalYear, windowDays int) ([]ExpiryAlert, error) {
	if windowDays <= 0 {
		windowDays = DefaultExpiryWindowDays
	}

	employees, err := w.store.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}

	today := w.clock.Today()
	horizon := today.AddDays(windowDays)

	var alerts []ExpiryAlert
	for _, emp := range employees {
		alert, err := w.scanEmployee(ctx, emp.ID, fiscalYear, today, horizon)
		if err != nil {
			return nil, err
		}
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts, nil
}

func (w *ExpirationWatcher) scanEmployee(ctx context.Context, id EmployeeID, fiscalYear int, today, horizon Date) (*ExpiryAlert, error) {
	open, err := w.store.OpenTranches(ctx, id, today)
	if err != nil {
		return nil, err
	}

	alert := ExpiryAlert{
		EmployeeID:   id,
		AtRiskAmount: ZeroDays(),
		Severity:     ExpiryWarning,
	}
	for _, t := range open {
		if fiscalYear > 0 && t.FiscalYear != fiscalYear {
			continue
		}
		if t.ExpiryDate.Before(today) || t.ExpiryDate.After(horizon) {
			continue
		}
		toExpiry := DaysBetween(today, t.ExpiryDate)
		severity := ExpiryWarning
		if toExpiry <= criticalWithinDays {
			severity = ExpiryCritical
			alert.Severity = ExpiryCritical
		}
		alert.Tranches = append(alert.Tranches, ExpiringTranche{
			TrancheID:    t.ID,
			FiscalYear:   t.FiscalYear,
			AtRiskAmount: t.Remaining,
			ExpiryDate:   t.ExpiryDate,
			DaysToExpiry: toExpiry,
			Severity:     severity,
		})
		alert.AtRiskAmount = alert.AtRiskAmount.Add(t.Remaining)
	}

	if len(alert.Tranches) == 0 {
		return nil, nil
	}
	return &alert, nil
}
