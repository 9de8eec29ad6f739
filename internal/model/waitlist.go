package model

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is one client's place in a provider's waitlist. Among
// active entries (NotifiedAt null) for a provider, positions are a
// contiguous 1..N sequence with no gaps or duplicates.
type WaitlistEntry struct {
	Base
	ProviderID  uuid.UUID  `db:"provider_id" json:"provider_id"`
	ClientName  string     `db:"client_name" json:"client_name"`
	Email       string     `db:"email" json:"email"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	DesiredDate *time.Time `db:"desired_date" json:"desired_date,omitempty"`
	Position    int        `db:"position" json:"position"`
	Notes       string     `db:"notes" json:"notes,omitempty"`
	NotifiedAt  *time.Time `db:"notified_at" json:"notified_at,omitempty"`
}

// Active reports whether the entry still participates in position
// renumbering. Notified entries are permanently excluded.
func (e *WaitlistEntry) Active() bool {
	return e.NotifiedAt == nil
}

type JoinWaitlistRequest struct {
	ClientName  string     `json:"client_name" binding:"required,max=200"`
	Email       string     `json:"email" binding:"required,email"`
	Phone       string     `json:"phone" binding:"max=32"`
	DesiredDate *time.Time `json:"desired_date"`
	Notes       string     `json:"notes" binding:"max=1000"`
}

type ReorderWaitlistRequest struct {
	Position int `json:"position" binding:"required,min=1"`
}
