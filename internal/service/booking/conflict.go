package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
)

// ConflictWindow is the fixed guard window centered on a candidate time.
// Any active reservation for the same provider scheduled strictly within
// 30 minutes of the candidate is a conflict, independent of the slot width
// used for display and of service duration. This is a deliberate policy
// constant, not a configuration surface.
const ConflictWindow = 30 * time.Minute

// HasConflict reports whether candidate collides with any of the given
// reservations. Only PENDING/CONFIRMED reservations participate;
// excludeID lets a reschedule re-check a slot without the reservation's
// own occupancy counting against it. The check is symmetric: a gap of
// exactly 30 minutes is not a conflict.
func HasConflict(candidate time.Time, existing []*model.Reservation, excludeID *uuid.UUID) bool {
	for _, r := range existing {
		if !r.Status.Active() || r.ScheduledAt == nil {
			continue
		}
		if excludeID != nil && r.ID == *excludeID {
			continue
		}
		diff := candidate.Sub(*r.ScheduledAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < ConflictWindow {
			return true
		}
	}
	return false
}

// FirstConflict returns the index of the first batch member colliding with
// existing, or -1 when the whole batch is clear. Series creation uses it
// to reject the batch before any insert happens.
func FirstConflict(batch, existing []*model.Reservation) int {
	for i, r := range batch {
		if HasConflict(*r.ScheduledAt, existing, nil) {
			return i
		}
	}
	return -1
}
