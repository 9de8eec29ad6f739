package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusNoShow    ReservationStatus = "no_show"
)

// Active reports whether the status participates in conflict checks.
func (s ReservationStatus) Active() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// Terminal reports whether no further transitions are legal.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationStatusCancelled, ReservationStatusCompleted, ReservationStatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal status
// change. The only backward move is CONFIRMED -> PENDING, which reschedule
// uses to force re-confirmation.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	switch s {
	case ReservationStatusPending:
		return next == ReservationStatusConfirmed || next == ReservationStatusCancelled
	case ReservationStatusConfirmed:
		return next == ReservationStatusCompleted ||
			next == ReservationStatusNoShow ||
			next == ReservationStatusCancelled ||
			next == ReservationStatusPending
	}
	return false
}

type RecurrencePattern string

const (
	RecurrenceNone     RecurrencePattern = "none"
	RecurrenceWeekly   RecurrencePattern = "weekly"
	RecurrenceBiweekly RecurrencePattern = "biweekly"
	RecurrenceMonthly  RecurrencePattern = "monthly"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// Reservation represents a single scheduled occurrence: a daycare tour,
// an enrollment request, or a medical appointment. Members of a recurring
// series share a SeriesID and carry the same pattern and end date.
type Reservation struct {
	Base
	ProviderID      uuid.UUID         `db:"provider_id" json:"provider_id"`
	ClientID        uuid.UUID         `db:"client_id" json:"client_id"`
	SubjectID       *uuid.UUID        `db:"subject_id" json:"subject_id,omitempty"`
	ScheduledAt     *time.Time        `db:"scheduled_at" json:"scheduled_at,omitempty"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          ReservationStatus `db:"status" json:"status"`
	SeriesID        *uuid.UUID        `db:"series_id" json:"series_id,omitempty"`
	Pattern         RecurrencePattern `db:"recurrence_pattern" json:"recurrence_pattern"`
	RecurrenceEnd   *time.Time        `db:"recurrence_end" json:"recurrence_end,omitempty"`
	Notes           string            `db:"notes" json:"notes,omitempty"`
	CancelledAt     *time.Time        `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	ReminderSentAt  *time.Time        `db:"reminder_sent_at" json:"-"`
}

// Duration returns the reservation length as a time.Duration.
func (r *Reservation) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

// ReservationFilters narrows reservation listings.
type ReservationFilters struct {
	ProviderID uuid.UUID
	ClientID   uuid.UUID
	Status     ReservationStatus
	StartDate  time.Time
	EndDate    time.Time
}

type CreateReservationRequest struct {
	ProviderID      string    `json:"provider_id" binding:"required,uuid"`
	SubjectID       string    `json:"subject_id" binding:"omitempty,uuid"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Notes           string    `json:"notes" binding:"max=1000"`
}

type CreateSeriesRequest struct {
	ProviderID      string    `json:"provider_id" binding:"required,uuid"`
	SubjectID       string    `json:"subject_id" binding:"omitempty,uuid"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Pattern         string    `json:"pattern" binding:"required,oneof=weekly biweekly monthly"`
	RecurrenceEnd   time.Time `json:"recurrence_end" binding:"omitempty"`
	Notes           string    `json:"notes" binding:"max=1000"`
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type RescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}
