package model

import (
	"time"

	"github.com/google/uuid"
)

// TemplateKind selects the notification template.
type TemplateKind string

const (
	TemplateBookingConfirmed  TemplateKind = "booking_confirmed"
	TemplateBookingCancelled  TemplateKind = "booking_cancelled"
	TemplateBookingReminder   TemplateKind = "booking_reminder"
	TemplateWaitlistPromotion TemplateKind = "waitlist_promotion"
)

// Recipient identifies the target of a notification. Either a user id
// (in-app) or an email address, or both.
type Recipient struct {
	UserID uuid.UUID `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Name   string    `json:"name,omitempty"`
}

// NotificationEvent is published to the in-app channel via the broker.
type NotificationEvent struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"`
	Kind      TemplateKind           `json:"kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
