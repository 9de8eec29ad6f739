package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ProviderType string

const (
	ProviderTypeDaycare ProviderType = "daycare"
	ProviderTypeMedical ProviderType = "medical_practice"
)

type ProviderStatus string

const (
	ProviderStatusPending   ProviderStatus = "pending"
	ProviderStatusActive    ProviderStatus = "active"
	ProviderStatusSuspended ProviderStatus = "suspended"
)

// Provider is one side of the marketplace: a daycare or a medical practice.
// Both capabilities share a single scheduling core; the type only changes
// what a reservation is called on the outside (tour vs. appointment).
type Provider struct {
	Base
	OwnerID uuid.UUID      `db:"owner_id" json:"owner_id"`
	Name    string         `db:"name" json:"name"`
	Type    ProviderType   `db:"type" json:"type"`
	Status  ProviderStatus `db:"status" json:"status"`
	Email   string         `db:"email" json:"email"`
	Phone   string         `db:"phone" json:"phone,omitempty"`
}

// Bookable reports whether the provider may accept new reservations.
func (p *Provider) Bookable() bool {
	return p.Status == ProviderStatusActive
}

// OperatingSchedule holds a provider's weekly opening hours. Opening and
// closing are provider-local wall-clock strings ("07:00"); the weekday set
// lists the days the provider is open and may be empty.
type OperatingSchedule struct {
	ProviderID uuid.UUID      `db:"provider_id" json:"provider_id"`
	Opening    string         `db:"opening" json:"opening"`
	Closing    string         `db:"closing" json:"closing"`
	Weekdays   pq.StringArray `db:"weekdays" json:"weekdays"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// OpenOn reports whether the schedule includes the given weekday.
func (s *OperatingSchedule) OpenOn(day time.Weekday) bool {
	for _, name := range s.Weekdays {
		if name == day.String() {
			return true
		}
	}
	return false
}

// Validate checks the opening-before-closing invariant and weekday names.
func (s *OperatingSchedule) Validate() error {
	open, err := ParseClock(s.Opening)
	if err != nil {
		return fmt.Errorf("invalid opening time: %w", err)
	}
	close, err := ParseClock(s.Closing)
	if err != nil {
		return fmt.Errorf("invalid closing time: %w", err)
	}
	if open >= close {
		return fmt.Errorf("opening time %s must be before closing time %s", s.Opening, s.Closing)
	}
	for _, name := range s.Weekdays {
		if !validWeekday(name) {
			return fmt.Errorf("invalid weekday %q", name)
		}
	}
	return nil
}

// ParseClock parses a wall-clock string like "07:00" into minutes since
// midnight.
func ParseClock(clock string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("malformed clock value %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", clock)
	}
	return h*60 + m, nil
}

func validWeekday(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return true
		}
	}
	return false
}

// Subject is the person a reservation is for: a child at a daycare or a
// family member at a medical practice. Ownership by the requesting client
// is checked before any booking write.
type Subject struct {
	Base
	ClientID  uuid.UUID  `db:"client_id" json:"client_id"`
	Name      string     `db:"name" json:"name"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
}
