// Package receipt formats daily sequential receipt numbers.
package receipt

import (
	"fmt"
	"time"
)

// Number builds a receipt identifier from the UTC calendar day of t and a
// 1-based daily sequence, e.g. "2026-09-01-000007".
func Number(t time.Time, seq int) string {
	return fmt.Sprintf("%s-%06d", t.UTC().Format("2006-01-02"), seq)
}

// DayBounds returns the UTC start of the calendar day containing t and the
// start of the following day. Repositories count sales in [from, to) when
// assigning the next sequence.
func DayBounds(t time.Time) (from time.Time, to time.Time) {
	t = t.UTC()
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}
