// Package dateutil provides calendar-day arithmetic for the planning board.
// A day is identified by a DayKey, the canonical "YYYY-MM-DD" string used
// on the wire, in map keys, and in equality checks. All arithmetic is pure:
// no function mutates its input or reads the system clock directly.
//
// Weeks start on Monday (ISO convention). There is no timezone handling:
// a DayKey names a calendar day, never an instant.
package dateutil

import (
	"fmt"
	"time"
)

// dayLayout is the wire format for calendar days.
const dayLayout = "2006-01-02"

// DayKey is a calendar day in canonical "YYYY-MM-DD" form. Because the
// format is fixed-width ISO, lexicographic comparison of DayKeys matches
// chronological comparison.
type DayKey string

// KeyOf returns the DayKey for the calendar day containing t.
func KeyOf(t time.Time) DayKey {
	return DayKey(t.Format(dayLayout))
}

// ParseDayKey validates and canonicalizes a wire date string.
func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return KeyOf(t), nil
}

// Time returns the day as a UTC midnight instant for arithmetic. UTC is
// used so day math never crosses a DST boundary; the result is only ever
// converted back to a DayKey.
func (k DayKey) Time() time.Time {
	t, _ := time.Parse(dayLayout, string(k))
	return t
}

// Valid reports whether k is a well-formed YYYY-MM-DD date.
func (k DayKey) Valid() bool {
	_, err := time.Parse(dayLayout, string(k))
	return err == nil
}

// AddDays returns the day n days after k (n may be negative).
func (k DayKey) AddDays(n int) DayKey {
	return KeyOf(k.Time().AddDate(0, 0, n))
}

// DaysSince returns the number of days from other to k. Negative when k
// is earlier.
func (k DayKey) DaysSince(other DayKey) int {
	return int(k.Time().Sub(other.Time()).Hours() / 24)
}

// Weekday returns the ISO weekday index of k: Monday=0 .. Sunday=6.
func (k DayKey) Weekday() int {
	return (int(k.Time().Weekday()) + 6) % 7
}

// Before reports whether k is strictly before other.
func (k DayKey) Before(other DayKey) bool { return k < other }

// After reports whether k is strictly after other.
func (k DayKey) After(other DayKey) bool { return k > other }

// StartOfWeek returns the Monday on or before k.
func StartOfWeek(k DayKey) DayKey {
	return k.AddDays(-k.Weekday())
}

// ViewMode selects the visible window of the board.
type ViewMode string

const (
	ViewDay   ViewMode = "day"
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// IsValid reports whether m is a known view mode.
func (m ViewMode) IsValid() bool {
	return m == ViewDay || m == ViewWeek || m == ViewMonth
}

// MonthGridCells is the fixed size of the month view: six full weeks, so
// partial weeks of adjacent months render without the grid resizing.
const MonthGridCells = 42

// VisibleRange returns the inclusive [start, end] window for a view mode
// and reference day.
//
//	day:   [ref, ref]
//	week:  [Monday on/before ref, +6]
//	month: [Monday on/before the 1st of ref's month, +41]
func VisibleRange(mode ViewMode, ref DayKey) (DayKey, DayKey) {
	switch mode {
	case ViewDay:
		return ref, ref
	case ViewMonth:
		t := ref.Time()
		first := KeyOf(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
		start := StartOfWeek(first)
		return start, start.AddDays(MonthGridCells - 1)
	default: // ViewWeek
		start := StartOfWeek(ref)
		return start, start.AddDays(6)
	}
}

// Navigate returns the reference day shifted by delta units of the view
// mode (days, weeks, or months).
func Navigate(mode ViewMode, ref DayKey, delta int) DayKey {
	switch mode {
	case ViewDay:
		return ref.AddDays(delta)
	case ViewMonth:
		// Anchor on the 1st and clamp the day, so Jan 31 + 1 month is
		// Feb 29/28, never a normalized skip into March.
		t := ref.Time()
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
		day := t.Day()
		if last := first.AddDate(0, 1, -1).Day(); day > last {
			day = last
		}
		return KeyOf(time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC))
	default:
		return ref.AddDays(7 * delta)
	}
}

// HeaderLabel returns the human-readable title for a view window.
//
//	day:   "Wednesday, March 13, 2024"
//	week:  "Mar 11 - 17, 2024" (month collapsed when the week stays inside it)
//	month: "March 2024"
func HeaderLabel(mode ViewMode, ref DayKey) string {
	switch mode {
	case ViewDay:
		return ref.Time().Format("Monday, January 2, 2006")
	case ViewMonth:
		return ref.Time().Format("January 2006")
	default:
		start, end := VisibleRange(ViewWeek, ref)
		st, et := start.Time(), end.Time()
		switch {
		case st.Year() != et.Year():
			return fmt.Sprintf("%s - %s", st.Format("Jan 2, 2006"), et.Format("Jan 2, 2006"))
		case st.Month() != et.Month():
			return fmt.Sprintf("%s - %s, %d", st.Format("Jan 2"), et.Format("Jan 2"), et.Year())
		default:
			return fmt.Sprintf("%s - %d, %d", st.Format("Jan 2"), et.Day(), et.Year())
		}
	}
}

// Clock supplies the current time. The engine and services take a Clock
// instead of calling time.Now so tests can pin "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Today returns the DayKey of the clock's current day.
func Today(c Clock) DayKey { return KeyOf(c.Now()) }
