package recurrence

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
)

// DefaultHorizon caps an expansion when the caller gives no end date.
// Callers that need an explicit cap must always pass one; this constant is
// a policy value, not a configuration surface.
const DefaultHorizon = 90 * 24 * time.Hour

// Expand turns a recurrence pattern into the ordered list of occurrence
// timestamps, starting at start and never exceeding end (inclusive
// boundary). Time-of-day is preserved on every occurrence. The start
// itself is always included, so a degenerate series yields exactly one
// occurrence. A zero end applies DefaultHorizon.
func Expand(pattern model.RecurrencePattern, start time.Time, end time.Time) []time.Time {
	if pattern == model.RecurrenceNone {
		return []time.Time{start}
	}

	if end.IsZero() {
		end = start.Add(DefaultHorizon)
	}

	occurrences := []time.Time{start}
	for {
		next := step(pattern, occurrences[len(occurrences)-1])
		if next.After(end) {
			break
		}
		occurrences = append(occurrences, next)
	}
	return occurrences
}

// NewSeriesID mints the opaque identifier shared by every member of a
// multi-occurrence booking. Single (NONE) bookings never receive one.
func NewSeriesID() uuid.UUID {
	return uuid.New()
}

func step(pattern model.RecurrencePattern, from time.Time) time.Time {
	switch pattern {
	case model.RecurrenceWeekly:
		return from.AddDate(0, 0, 7)
	case model.RecurrenceBiweekly:
		return from.AddDate(0, 0, 14)
	case model.RecurrenceMonthly:
		return addMonthClamped(from)
	}
	return from
}

// addMonthClamped advances one calendar month, clamping the day to the last
// valid day of a shorter month (Jan 31 -> Feb 28/29). Go's AddDate would
// roll Jan 31 over into March instead.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	firstOfNext := time.Date(year, month+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(firstOfNext); day > last {
		day = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
