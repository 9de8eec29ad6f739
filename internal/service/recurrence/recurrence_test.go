package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/booking-api/internal/model"
)

func TestExpandNone(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	got := Expand(model.RecurrenceNone, start, start.AddDate(1, 0, 0))

	require.Len(t, got, 1)
	assert.Equal(t, start, got[0])
}

func TestExpandWeekly(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2025, 6, 23, 9, 0, 0, 0, time.UTC)

	got := Expand(model.RecurrenceWeekly, start, end)

	want := []time.Time{
		time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 23, 9, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, got)
}

func TestExpandBiweekly(t *testing.T) {
	start := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 28)

	got := Expand(model.RecurrenceBiweekly, start, end)

	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 14*24*time.Hour, got[i].Sub(got[i-1]))
	}
}

func TestExpandMonthlyClampsShortMonths(t *testing.T) {
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 30, 10, 0, 0, 0, time.UTC)

	got := Expand(model.RecurrenceMonthly, start, end)

	want := []time.Time{
		time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 28, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 4, 28, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, got)
}

func TestExpandMonthlyLeapYear(t *testing.T) {
	start := time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)

	got := Expand(model.RecurrenceMonthly, start, end)

	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), got[1])
}

func TestExpandMonotonicPreservesTimeOfDay(t *testing.T) {
	start := time.Date(2025, 3, 15, 16, 45, 0, 0, time.UTC)

	for _, pattern := range []model.RecurrencePattern{
		model.RecurrenceWeekly, model.RecurrenceBiweekly, model.RecurrenceMonthly,
	} {
		got := Expand(pattern, start, start.AddDate(0, 6, 0))
		require.NotEmpty(t, got)
		for i, occ := range got {
			assert.Equal(t, 16, occ.Hour(), "pattern %s occurrence %d", pattern, i)
			assert.Equal(t, 45, occ.Minute(), "pattern %s occurrence %d", pattern, i)
			if i > 0 {
				assert.True(t, occ.After(got[i-1]), "pattern %s not strictly increasing", pattern)
			}
		}
	}
}

func TestExpandInclusiveEndBoundary(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7) // lands exactly on the second occurrence

	got := Expand(model.RecurrenceWeekly, start, end)

	require.Len(t, got, 2)
	assert.Equal(t, end, got[1])
}

func TestExpandDegenerateSeries(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3) // before start + one weekly period

	for _, pattern := range []model.RecurrencePattern{
		model.RecurrenceWeekly, model.RecurrenceBiweekly, model.RecurrenceMonthly,
	} {
		got := Expand(pattern, start, end)
		assert.Equal(t, []time.Time{start}, got, "pattern %s", pattern)
	}
}

func TestExpandDefaultHorizon(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	got := Expand(model.RecurrenceWeekly, start, time.Time{})

	// 90 days of weekly occurrences: start + 12 full weeks.
	require.Len(t, got, 13)
	assert.Equal(t, start.AddDate(0, 0, 84), got[12])
}

func TestNewSeriesIDUnique(t *testing.T) {
	assert.NotEqual(t, NewSeriesID(), NewSeriesID())
}
