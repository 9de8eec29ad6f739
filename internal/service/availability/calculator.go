package availability

import (
	"time"

	"github.com/carebridge/booking-api/internal/model"
)

const (
	// DefaultSlotWidth is the grid step used for tours and appointments.
	DefaultSlotWidth = 30 * time.Minute

	// DefaultHorizonDays bounds how far ahead the read path computes slots.
	DefaultHorizonDays = 14

	// MaxHorizonDays caps caller-supplied horizons.
	MaxHorizonDays = 90
)

// Slot is an ephemeral, computed time-of-day interval with an availability
// flag. Slots are derived on every query and never persisted.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// DayAvailability is one day's slot grid.
type DayAvailability struct {
	Date   time.Time `json:"date"`
	IsOpen bool      `json:"is_open"`
	Slots  []Slot    `json:"slots"`
}

// Compute derives the slot grids for [today, today+horizonDays) from a
// provider's operating schedule and its existing reservations. The result
// is advisory only: it reflects a snapshot and all real conflict
// prevention happens at write time.
//
// Days outside the active weekday set are closed with zero slots. Slots
// step from opening by slotWidth; a trailing partial slot is dropped. A
// slot is unavailable if any active reservation's [scheduledAt,
// scheduledAt+duration) interval intersects the slot's [start, end)
// interval. On the current day, slots whose start has already passed
// relative to now are not emitted.
func Compute(schedule *model.OperatingSchedule, reservations []*model.Reservation, horizonDays int, slotWidth time.Duration, now time.Time) ([]DayAvailability, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if horizonDays < 1 {
		horizonDays = 1
	}
	if slotWidth <= 0 {
		slotWidth = DefaultSlotWidth
	}

	openMin, _ := model.ParseClock(schedule.Opening)
	closeMin, _ := model.ParseClock(schedule.Closing)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	days := make([]DayAvailability, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		date := today.AddDate(0, 0, i)
		day := DayAvailability{Date: date}

		if !schedule.OpenOn(date.Weekday()) {
			days = append(days, day)
			continue
		}
		day.IsOpen = true

		opening := date.Add(time.Duration(openMin) * time.Minute)
		closing := date.Add(time.Duration(closeMin) * time.Minute)

		for start := opening; !start.Add(slotWidth).After(closing); start = start.Add(slotWidth) {
			if start.Before(now) {
				continue
			}
			day.Slots = append(day.Slots, Slot{
				Start:     start,
				End:       start.Add(slotWidth),
				Available: !slotOccupied(start, start.Add(slotWidth), reservations),
			})
		}
		days = append(days, day)
	}
	return days, nil
}

// slotOccupied applies half-open interval semantics: a reservation ending
// exactly at slot start, or starting exactly at slot end, does not
// conflict.
func slotOccupied(slotStart, slotEnd time.Time, reservations []*model.Reservation) bool {
	for _, r := range reservations {
		if !r.Status.Active() || r.ScheduledAt == nil {
			continue
		}
		resStart := *r.ScheduledAt
		resEnd := resStart.Add(r.Duration())
		if resStart.Before(slotEnd) && resEnd.After(slotStart) {
			return true
		}
	}
	return false
}
