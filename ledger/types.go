/*
Package ledger implements the paid-leave balance ledger and compliance engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  statutory paid-leave (年次有給休暇) balances: grant tranches with a
  two-year legal window, LIFO deduction of approved leave, fiscal-year
  rollover, and the mandatory 5-day usage rule.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A leave amount in days (whole or half), decimal-backed
  - Date: A day-granular point in time (grant dates, expiry dates, use dates)
  - GrantTranche: One fiscal year's grant with its own expiry and remainder
  - UsageEvent: An immutable record of approved leave and its attribution
  - Fiscal year helpers: Japanese fiscal year, April 1 through March 31

DESIGN PRINCIPLES:
  1. Immutability: UsageEvents are never edited, only reversed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing employee/tranche IDs
  4. Accounting: granted = used + expired + balance per tranche, always

SEE ALSO:
  - grant.go: Statutory grant table
  - deduction.go: LIFO deduction and reversal
  - carryover.go: Fiscal-year rollover
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Leave amount in days (whole or half days)
// =============================================================================

type Days struct {
	value decimal.Decimal
}

func NewDays(v float64) Days          { return Days{value: decimal.NewFromFloat(v)} }
func NewDaysFromInt(v int) Days       { return Days{value: decimal.NewFromInt(int64(v))} }
func ZeroDays() Days                  { return Days{value: decimal.Zero} }
func DaysFromDecimal(d decimal.Decimal) Days { return Days{value: d} }

func MustParseDays(s string) Days {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroDays()
	}
	return Days{value: d}
}

func (d Days) Decimal() decimal.Decimal { return d.value }
func (d Days) String() string           { return d.value.String() }

func (d Days) Add(o Days) Days        { return Days{value: d.value.Add(o.value)} }
func (d Days) Sub(o Days) Days        { return Days{value: d.value.Sub(o.value)} }
func (d Days) Neg() Days              { return Days{value: d.value.Neg()} }
func (d Days) IsZero() bool           { return d.value.IsZero() }
func (d Days) IsNegative() bool       { return d.value.IsNegative() }
func (d Days) IsPositive() bool       { return d.value.IsPositive() }
func (d Days) GreaterThan(o Days) bool { return d.value.GreaterThan(o.value) }
func (d Days) LessThan(o Days) bool    { return d.value.LessThan(o.value) }
func (d Days) Equal(o Days) bool       { return d.value.Equal(o.value) }

func (d Days) Min(o Days) Days {
	if d.LessThan(o) {
		return d
	}
	return o
}

// IsHalfDayMultiple reports whether the amount is a multiple of 0.5 days.
// Statutory leave is granted and taken in whole or half days only.
func (d Days) IsHalfDayMultiple() bool {
	return d.value.Mul(decimal.NewFromInt(2)).IsInteger()
}

// =============================================================================
// DATE - Day-granular point in time (the ledger never needs finer grain)
// =============================================================================

type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateFromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateFromTime(t), nil
}

func (d Date) Time() time.Time        { return d.t }
func (d Date) Before(o Date) bool     { return d.t.Before(o.t) }
func (d Date) After(o Date) bool      { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool      { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

func (d Date) AddDays(n int) Date     { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date   { return Date{t: d.t.AddDate(0, n, 0)} }
func (d Date) AddYears(n int) Date    { return Date{t: d.t.AddDate(n, 0, 0)} }

func (d Date) Year() int           { return d.t.Year() }
func (d Date) Month() time.Month   { return d.t.Month() }
func (d Date) Day() int            { return d.t.Day() }
func (d Date) String() string      { return d.t.Format("2006-01-02") }

func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// MonthsBetween returns whole calendar months elapsed from 'from' to 'to'.
// Used for seniority: hired October 1, evaluated April 1 = 6 months.
func MonthsBetween(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// =============================================================================
// FISCAL YEAR - Japanese fiscal year: April 1 through March 31
// =============================================================================

// FiscalYearStart returns April 1 of the given fiscal year, the statutory
// grant date (基準日) for that year's tranche.
func FiscalYearStart(fy int) Date { return NewDate(fy, time.April, 1) }

// FiscalYearEnd returns March 31 of the following calendar year.
func FiscalYearEnd(fy int) Date { return NewDate(fy+1, time.March, 31) }

// FiscalYearOf returns the fiscal year containing the given date.
func FiscalYearOf(d Date) int {
	if d.Month() < time.April {
		return d.Year() - 1
	}
	return d.Year()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type TrancheID string
type UsageEventID string

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is the ledger's view of an employee: identity plus hire date.
// Hire date drives seniority and therefore grant amounts; it is immutable
// once recorded.
type Employee struct {
	ID       EmployeeID
	Name     string
	HireDate Date
}

// SeniorityYears returns years of continuous service at the given date as a
// fraction: whole months elapsed divided by twelve.
func (e Employee) SeniorityYears(at Date) decimal.Decimal {
	months := MonthsBetween(e.HireDate, at)
	return decimal.NewFromInt(int64(months)).Div(decimal.NewFromInt(12))
}

// =============================================================================
// GRANT TRANCHE - One fiscal year's grant with its own expiry
// =============================================================================

// TrancheKind distinguishes statutory grants from reversal adjustments.
type TrancheKind string

const (
	// TrancheGrant is a statutory fiscal-year grant.
	TrancheGrant TrancheKind = "grant"

	// TrancheAdjustment is a zero-duration tranche created when a reversal
	// credits days whose original tranche has already expired. It keeps the
	// ledger balanced without letting days reappear past their legal window.
	TrancheAdjustment TrancheKind = "adjustment"
)

// GrantTranche is one grant of paid-leave days with its own two-year window.
//
// INVARIANTS:
//   - 0 <= Remaining <= Granted
//   - Granted = used + Expired + Remaining (used is derived, see Used())
//   - A tranche with Remaining == 0 or past its ExpiryDate is inert: it is
//     excluded from deduction candidates.
type GrantTranche struct {
	ID         TrancheID
	EmployeeID EmployeeID
	FiscalYear int
	Kind       TrancheKind
	GrantDate  Date
	ExpiryDate Date // GrantDate + 2 years for statutory grants
	Granted    Days
	Remaining  Days
	Expired    Days

	// Seq is the insertion order, assigned by the store. Deduction ordering
	// within equal grant dates is stable by Seq.
	Seq int64
}

// Used returns days taken against this tranche (derived, never stored).
func (t GrantTranche) Used() Days {
	return t.Granted.Sub(t.Remaining).Sub(t.Expired)
}

// IsOpen reports whether the tranche can still be deducted from as of the
// given date.
func (t GrantTranche) IsOpen(asOf Date) bool {
	return t.Remaining.IsPositive() && asOf.BeforeOrEqual(t.ExpiryDate)
}

// StatutoryExpiry returns the legal expiry for a grant made on the given
// date: two years from grant.
func StatutoryExpiry(grantDate Date) Date {
	return grantDate.AddYears(2)
}

// =============================================================================
// USAGE EVENT - Immutable record of approved leave
// =============================================================================

// TrancheDebit records how much of a usage event was taken from one tranche.
type TrancheDebit struct {
	TrancheID TrancheID
	Amount    Days
}

// UsageEvent records one approved leave deduction. Created when a leave
// request is approved and never mutated afterward; corrections happen via a
// compensating reversal, not an edit.
type UsageEvent struct {
	ID         UsageEventID
	EmployeeID EmployeeID
	UseDate    Date
	Amount     Days
	Debits     []TrancheDebit // filled by the deduction engine
	Reason     string

	// ReversedAt is set when a compensating reversal has been applied.
	// A reversed event cannot be reversed again.
	ReversedAt *Date
}

// IsReversed reports whether a compensating reversal was applied.
func (e UsageEvent) IsReversed() bool { return e.ReversedAt != nil }

// =============================================================================
// ACCUMULATION CEILING
// =============================================================================

// MaxAccumulatedDays is the statutory ceiling on total open balance across
// all tranches: two full 20-day grants. Surplus above the ceiling expires at
// rollover.
var MaxAccumulatedDays = NewDaysFromInt(40)
