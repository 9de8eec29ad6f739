package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/booking-api/internal/model"
)

func testSchedule(opening, closing string, weekdays ...string) *model.OperatingSchedule {
	return &model.OperatingSchedule{
		ProviderID: uuid.New(),
		Opening:    opening,
		Closing:    closing,
		Weekdays:   pq.StringArray(weekdays),
	}
}

func activeReservation(at time.Time, minutes int) *model.Reservation {
	return &model.Reservation{
		Base:            model.Base{ID: uuid.New()},
		ScheduledAt:     &at,
		DurationMinutes: minutes,
		Status:          model.ReservationStatusConfirmed,
	}
}

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func TestComputeFullOpenDay(t *testing.T) {
	schedule := testSchedule("08:00", "17:00", "Tuesday")

	days, err := Compute(schedule, nil, 2, DefaultSlotWidth, monday)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.False(t, days[0].IsOpen)
	assert.Empty(t, days[0].Slots)

	tuesday := days[1]
	assert.True(t, tuesday.IsOpen)
	require.Len(t, tuesday.Slots, 18)
	assert.Equal(t, time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC), tuesday.Slots[0].Start)
	assert.Equal(t, time.Date(2025, 6, 3, 16, 30, 0, 0, time.UTC), tuesday.Slots[17].Start)
	assert.Equal(t, time.Date(2025, 6, 3, 17, 0, 0, 0, time.UTC), tuesday.Slots[17].End)
	for _, slot := range tuesday.Slots {
		assert.True(t, slot.Available)
	}
}

func TestComputeDropsTrailingPartialSlot(t *testing.T) {
	schedule := testSchedule("09:00", "10:45", "Tuesday")

	days, err := Compute(schedule, nil, 2, DefaultSlotWidth, monday)
	require.NoError(t, err)

	slots := days[1].Slots
	require.Len(t, slots, 3)
	assert.Equal(t, time.Date(2025, 6, 3, 10, 30, 0, 0, time.UTC), slots[2].End)
}

func TestComputeMarksOverlappingSlotsUnavailable(t *testing.T) {
	schedule := testSchedule("09:00", "12:00", "Tuesday")
	booking := activeReservation(time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC), 60)

	days, err := Compute(schedule, []*model.Reservation{booking}, 2, DefaultSlotWidth, monday)
	require.NoError(t, err)

	byStart := map[string]bool{}
	for _, slot := range days[1].Slots {
		byStart[slot.Start.Format("15:04")] = slot.Available
	}
	assert.True(t, byStart["09:00"])
	assert.True(t, byStart["09:30"])
	assert.False(t, byStart["10:00"])
	assert.False(t, byStart["10:30"])
	assert.True(t, byStart["11:00"])
	assert.True(t, byStart["11:30"])
}

func TestComputeHalfOpenBoundaries(t *testing.T) {
	schedule := testSchedule("09:00", "11:00", "Tuesday")
	// Ends exactly at 10:00: the 10:00 slot is free.
	booking := activeReservation(time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC), 30)

	days, err := Compute(schedule, []*model.Reservation{booking}, 2, DefaultSlotWidth, monday)
	require.NoError(t, err)

	slots := days[1].Slots
	require.Len(t, slots, 4)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
	assert.True(t, slots[3].Available)
}

func TestComputeIgnoresInactiveReservations(t *testing.T) {
	schedule := testSchedule("09:00", "10:00", "Tuesday")
	cancelled := activeReservation(time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC), 30)
	cancelled.Status = model.ReservationStatusCancelled

	days, err := Compute(schedule, []*model.Reservation{cancelled}, 2, DefaultSlotWidth, monday)
	require.NoError(t, err)

	for _, slot := range days[1].Slots {
		assert.True(t, slot.Available)
	}
}

func TestComputeSkipsPastSlotsOnCurrentDay(t *testing.T) {
	schedule := testSchedule("08:00", "17:00", "Monday")
	noon := monday.Add(12 * time.Hour)

	days, err := Compute(schedule, nil, 1, DefaultSlotWidth, noon)
	require.NoError(t, err)

	today := days[0]
	require.NotEmpty(t, today.Slots)
	assert.Equal(t, noon, today.Slots[0].Start)
	require.Len(t, today.Slots, 10)
}

func TestComputeRejectsInvalidSchedule(t *testing.T) {
	_, err := Compute(testSchedule("17:00", "08:00", "Monday"), nil, 1, DefaultSlotWidth, monday)
	assert.Error(t, err)

	_, err = Compute(testSchedule("8am", "17:00", "Monday"), nil, 1, DefaultSlotWidth, monday)
	assert.Error(t, err)
}

func TestComputeEmptyWeekdaySetIsAllClosed(t *testing.T) {
	schedule := testSchedule("08:00", "17:00")

	days, err := Compute(schedule, nil, 7, DefaultSlotWidth, monday)
	require.NoError(t, err)
	for _, day := range days {
		assert.False(t, day.IsOpen)
		assert.Empty(t, day.Slots)
	}
}
