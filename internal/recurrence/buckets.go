package recurrence

import (
	"fmt"

	"pocketbook/internal/core"
)

const (
	GranularityWeekly    Granularity = "weekly"
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityAnnual    Granularity = "annual"
)

type (
	// Granularity selects the period width of history buckets.
	Granularity string

	// Bucket is one period of the history chart: its start date, a display
	// label and the planned/spent totals of the budgets that fall inside.
	Bucket struct {
		Start   core.Date `json:"start"`
		Label   string    `json:"label"`
		Planned core.Money `json:"planned"`
		Spent   core.Money `json:"spent"`
		Count   int        `json:"count"`
	}
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityWeekly, GranularityMonthly, GranularityQuarterly, GranularityAnnual:
		return true
	}
	return false
}

// BucketByPeriod groups budgets into chronological, contiguous buckets from
// the earliest to the latest entry date. Empty intermediate buckets are
// emitted with zero totals so a chart renders a continuous timeline. Weekly
// buckets start on Sunday; quarterly buckets are the calendar quarters
// starting in January, April, July and October.
func BucketByPeriod(budgets []core.Budget, g Granularity) []Bucket {
	if len(budgets) == 0 || !g.Valid() {
		return nil
	}

	minDate, maxDate := budgets[0].Date, budgets[0].Date
	for _, b := range budgets[1:] {
		if b.Date.Before(minDate) {
			minDate = b.Date
		}
		if b.Date.After(maxDate) {
			maxDate = b.Date
		}
	}

	var starts []core.Date
	for cur := bucketStart(minDate, g); !cur.After(maxDate); cur = nextBucket(cur, g) {
		starts = append(starts, cur)
	}

	out := make([]Bucket, len(starts))
	index := make(map[string]int, len(starts))
	for i, start := range starts {
		out[i] = Bucket{Start: start, Label: bucketLabel(start, g)}
		index[start.ISO()] = i
	}

	for _, b := range budgets {
		i, ok := index[bucketStart(b.Date, g).ISO()]
		if !ok {
			continue
		}
		out[i].Planned.Cents += b.Planned.Cents
		out[i].Spent.Cents += b.Spent.Cents
		out[i].Count++
	}
	return out
}

// bucketStart floors a date to the start of its bucket.
func bucketStart(d core.Date, g Granularity) core.Date {
	switch g {
	case GranularityWeekly:
		// Sunday start, matching the app's week convention.
		return core.Date{Time: d.AddDate(0, 0, -int(d.Weekday()))}
	case GranularityQuarterly:
		q := (int(d.Month()) - 1) / 3
		return core.NewDate(d.Year(), q*3+1, 1)
	case GranularityAnnual:
		return core.NewDate(d.Year(), 1, 1)
	default:
		return core.NewDate(d.Year(), int(d.Month()), 1)
	}
}

func nextBucket(start core.Date, g Granularity) core.Date {
	switch g {
	case GranularityWeekly:
		return core.Date{Time: start.AddDate(0, 0, 7)}
	case GranularityQuarterly:
		return core.Date{Time: start.AddDate(0, 3, 0)}
	case GranularityAnnual:
		return core.Date{Time: start.AddDate(1, 0, 0)}
	default:
		return core.Date{Time: start.AddDate(0, 1, 0)}
	}
}

func bucketLabel(start core.Date, g Granularity) string {
	switch g {
	case GranularityWeekly:
		return start.Format("Jan 2, 2006")
	case GranularityQuarterly:
		return fmt.Sprintf("Q%d %d", (int(start.Month())-1)/3+1, start.Year())
	case GranularityAnnual:
		return fmt.Sprintf("%d", start.Year())
	default:
		return start.Format("Jan 2006")
	}
}

// RangeFilter keeps the budgets dated inside [from, to] inclusive. Zero
// bounds are open.
func RangeFilter(budgets []core.Budget, from, to core.Date) []core.Budget {
	var out []core.Budget
	for _, b := range budgets {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
