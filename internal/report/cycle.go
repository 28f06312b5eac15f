// Package report computes the periodic summaries sent to the supervisory
// group: the twice-daily digest, the cycle rollover announcement and the
// daily alert-threshold check. Everything here is read-only with respect
// to complaint rows.
package report

import "time"

// CycleStartFor returns the start of the reporting cycle containing t.
// Cycles are offset months: one runs from the 2nd of a month, 00:00, to
// the following 1st inclusive. The timezone of t is preserved.
func CycleStartFor(t time.Time) time.Time {
	if t.Day() >= 2 {
		return time.Date(t.Year(), t.Month(), 2, 0, 0, 0, 0, t.Location())
	}
	// Day 1 still belongs to the previous month's cycle. time.Date
	// normalizes month 0 to December of the previous year.
	return time.Date(t.Year(), t.Month()-1, 2, 0, 0, 0, 0, t.Location())
}

// CycleKey returns the YYYY-MM label of the cycle containing t.
func CycleKey(t time.Time) string {
	return CycleStartFor(t).Format("2006-01")
}

// DayStartFor returns midnight of t's calendar day in t's timezone.
func DayStartFor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
