// Package sequence derives the human-readable registration number:
// {PREFIX}-{YY}-{NNNN}, where PREFIX is the trip code (or REG), YY the
// two-digit year, and NNNN a zero-padded counter scoped to that prefix+year.
//
// The counter is not stored; it is derived from the numbers already issued
// for the trip. That derivation is only safe inside the same atomic unit as
// the capacity reservation and the insert, because two concurrent bookings
// reading the same maximum would otherwise issue colliding numbers. The
// stores own that atomicity; this package is pure.
package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// width is the minimum zero-padded width of the counter. Counters past 9999
// keep growing in digits rather than wrapping; numeric comparison is used to
// find the maximum, so ordering stays correct past the fixed width.
const width = 4

// YearToken renders the two-digit year segment.
func YearToken(t time.Time) string {
	return fmt.Sprintf("%02d", t.Year()%100)
}

// Pattern is the prefix all numbers for this trip and year share, including
// the trailing separator. Usable directly in a LIKE 'pattern%' query.
func Pattern(prefix string, t time.Time) string {
	return prefix + "-" + YearToken(t) + "-"
}

// Format renders the number for the given counter value.
func Format(prefix string, t time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", Pattern(prefix, t), width, seq)
}

// Counter extracts the numeric counter from a registration number, matching
// the given prefix+year. Returns false for numbers outside that scope or
// with a malformed trailing group.
func Counter(number, prefix string, t time.Time) (int, bool) {
	pattern := Pattern(prefix, t)
	rest, ok := strings.CutPrefix(number, pattern)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextFrom scans the already-issued numbers and returns the next counter for
// the prefix+year scope: the numeric maximum plus one, or one when none
// match. Callers must invoke this inside the booking atomic unit.
func NextFrom(existing []string, prefix string, t time.Time) int {
	max := 0
	for _, number := range existing {
		if n, ok := Counter(number, prefix, t); ok && n > max {
			max = n
		}
	}
	return max + 1
}
