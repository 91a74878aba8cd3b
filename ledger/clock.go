package ledger

import "time"

// =============================================================================
// CLOCK - Injected time source (no hidden time.Now in the engine)
// =============================================================================

// Clock supplies "today" to components that classify tranches by expiry.
// Injected so tests and replays can pin the calendar.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() Date { return DateFromTime(time.Now().UTC()) }

// FixedClock always returns the same date. For tests.
type FixedClock struct {
	Date Date
}

func (c FixedClock) Today() Date { return c.Date }
