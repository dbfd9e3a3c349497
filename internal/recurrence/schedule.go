// Package recurrence implements the recurring-budget occurrence model:
// expanding a recurring draft into dated occurrences, applying edits scoped
// to one occurrence, a whole series or its future tail, and bucketing dated
// entries into contiguous period buckets for history views.
package recurrence

import (
	"time"

	"pocketbook/internal/core"
)

// DefaultHorizonYears bounds expansion when a recurring draft has no stop
// date: occurrences are materialized through one year after the anchor.
const DefaultHorizonYears = 1

// Occurrences expands an anchor date into the dated occurrences of a
// recurrence rule, through the inclusive stop date when present, otherwise
// through the default horizon. A rule of none yields just the anchor.
//
// Month-relative steps keep the anchor's day of month, clamping to the last
// day of shorter months (Jan 31 monthly -> Feb 28/29).
func Occurrences(anchor core.Date, rule core.RecurrenceRule, stop *core.Date) []core.Date {
	if !rule.Recurring() {
		return []core.Date{anchor}
	}

	limit := core.Date{Time: anchor.AddDate(DefaultHorizonYears, 0, 0)}
	if stop != nil {
		limit = *stop
	}

	var out []core.Date
	for i := 0; ; i++ {
		d := nthOccurrence(anchor, rule, i)
		if d.After(limit) {
			break
		}
		out = append(out, d)
	}
	return out
}

// nthOccurrence computes occurrence i (0-based) of a rule from its anchor.
// Each occurrence is derived from the anchor rather than the previous step so
// day-of-month clamping never drifts (Jan 31 -> Feb 28 -> Mar 31, not Mar 28).
func nthOccurrence(anchor core.Date, rule core.RecurrenceRule, i int) core.Date {
	switch rule {
	case core.RecurWeekly:
		return core.Date{Time: anchor.AddDate(0, 0, 7*i)}
	case core.RecurMonthly:
		return addMonthsClamped(anchor, i)
	case core.RecurQuarterly:
		return addMonthsClamped(anchor, 3*i)
	case core.RecurAnnually:
		return addMonthsClamped(anchor, 12*i)
	default:
		return anchor
	}
}

// addMonthsClamped adds months to a date keeping the day of month, clamped to
// the target month's last day. time.AddDate would normalize Feb 31 into
// March, which is exactly the drift this avoids.
func addMonthsClamped(d core.Date, months int) core.Date {
	year, month, day := d.Date()
	m := int(month) + months
	y := year + (m-1)/12
	m = (m-1)%12 + 1
	if m <= 0 {
		m += 12
		y--
	}
	if last := daysInMonth(y, m); day > last {
		day = last
	}
	return core.NewDate(y, m, day)
}

func daysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
