package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/carebridge/booking-api/internal/model"
)

var conflictBase = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

func reservationAt(at time.Time, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{
		Base:            model.Base{ID: uuid.New()},
		ScheduledAt:     &at,
		DurationMinutes: 30,
		Status:          status,
	}
}

func TestHasConflictWithinWindow(t *testing.T) {
	existing := []*model.Reservation{reservationAt(conflictBase, model.ReservationStatusConfirmed)}

	assert.True(t, HasConflict(conflictBase, existing, nil))
	assert.True(t, HasConflict(conflictBase.Add(15*time.Minute), existing, nil))
	assert.True(t, HasConflict(conflictBase.Add(29*time.Minute), existing, nil))
	assert.True(t, HasConflict(conflictBase.Add(-29*time.Minute), existing, nil))
}

func TestHasConflictExactThirtyMinutesIsClear(t *testing.T) {
	existing := []*model.Reservation{reservationAt(conflictBase, model.ReservationStatusConfirmed)}

	assert.False(t, HasConflict(conflictBase.Add(30*time.Minute), existing, nil))
	assert.False(t, HasConflict(conflictBase.Add(-30*time.Minute), existing, nil))
}

func TestHasConflictIgnoresInactive(t *testing.T) {
	existing := []*model.Reservation{
		reservationAt(conflictBase, model.ReservationStatusCancelled),
		reservationAt(conflictBase, model.ReservationStatusCompleted),
		reservationAt(conflictBase, model.ReservationStatusNoShow),
	}

	assert.False(t, HasConflict(conflictBase, existing, nil))
}

func TestHasConflictExcludesOwnReservation(t *testing.T) {
	mine := reservationAt(conflictBase, model.ReservationStatusConfirmed)
	existing := []*model.Reservation{mine}

	assert.False(t, HasConflict(conflictBase.Add(10*time.Minute), existing, &mine.ID))

	other := uuid.New()
	assert.True(t, HasConflict(conflictBase.Add(10*time.Minute), existing, &other))
}

func TestHasConflictSkipsUnscheduled(t *testing.T) {
	r := reservationAt(conflictBase, model.ReservationStatusPending)
	r.ScheduledAt = nil

	assert.False(t, HasConflict(conflictBase, []*model.Reservation{r}, nil))
}

func TestFirstConflictNamesFirstBadOccurrence(t *testing.T) {
	batch := make([]*model.Reservation, 5)
	for i := range batch {
		batch[i] = reservationAt(conflictBase.AddDate(0, 0, 7*i), model.ReservationStatusPending)
	}

	// Collides with occurrence 3 (index 2).
	existing := []*model.Reservation{
		reservationAt(conflictBase.AddDate(0, 0, 14).Add(10*time.Minute), model.ReservationStatusConfirmed),
	}

	assert.Equal(t, 2, FirstConflict(batch, existing))
	assert.Equal(t, -1, FirstConflict(batch, nil))
}
