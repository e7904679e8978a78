// Package dategroup buckets events under relative date labels for display.
package dategroup

import (
	"time"

	"github.com/user/connector/internal/types"
)

const (
	LabelToday    = "Today"
	LabelTomorrow = "Tomorrow"
	LabelInvalid  = "Invalid Date"

	// DateLayout is the wire format of Event.Date.
	DateLayout = "2006-01-02"
	// LongLayout renders dates beyond tomorrow, e.g. "Sunday, June 1, 2025".
	LongLayout = "Monday, January 2, 2006"
)

// Group is one labeled bucket of events.
type Group struct {
	Label  string
	Events []types.Event
}

// ByDate groups events by their label relative to now's calendar date in
// now's location. Groups appear in order of first occurrence in events,
// not chronologically, and each group keeps its events' input order.
func ByDate(events []types.Event, now time.Time) []Group {
	// Noon is never skipped by a DST transition, unlike midnight.
	y, m, d := now.Date()
	today := time.Date(y, m, d, 12, 0, 0, 0, now.Location())
	tomorrow := time.Date(y, m, d+1, 12, 0, 0, 0, now.Location())

	var groups []Group
	index := make(map[string]int)
	for _, ev := range events {
		label := Label(ev.Date, today, tomorrow)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}
	return groups
}

// Label returns the display label for a YYYY-MM-DD date string. Only
// calendar dates are compared: the date is matched against the year, month
// and day of today and tomorrow, with no time-of-day involved.
func Label(date string, today, tomorrow time.Time) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return LabelInvalid
	}
	switch {
	case sameDay(t, today):
		return LabelToday
	case sameDay(t, tomorrow):
		return LabelTomorrow
	default:
		return t.Format(LongLayout)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Unique drops events whose URL already appeared earlier in the list.
// Events without a URL are always kept.
func Unique(events []types.Event) []types.Event {
	seen := make(map[string]bool, len(events))
	out := make([]types.Event, 0, len(events))
	for _, ev := range events {
		if ev.URL != "" {
			if seen[ev.URL] {
				continue
			}
			seen[ev.URL] = true
		}
		out = append(out, ev)
	}
	return out
}
