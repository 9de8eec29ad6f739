package availability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/carebridge/booking-api/internal/repository"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

const cacheTTL = 30 * time.Second

// Service is the availability read path. Results are cached briefly per
// provider/horizon pair; the cache is a staleness tradeoff on an already
// advisory answer, never a correctness mechanism.
type Service struct {
	providers    repository.ProviderRepository
	reservations repository.ReservationRepository
	cache        *cache.Cache

	now func() time.Time
}

func NewService(providers repository.ProviderRepository, reservations repository.ReservationRepository) *Service {
	return &Service{
		providers:    providers,
		reservations: reservations,
		cache:        cache.New(cacheTTL, time.Minute),
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetAvailability computes the provider's slot grids for the next
// horizonDays days. horizonDays <= 0 falls back to the default and
// values above the cap are clamped.
func (s *Service) GetAvailability(ctx context.Context, providerID uuid.UUID, horizonDays int) ([]DayAvailability, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if horizonDays > MaxHorizonDays {
		horizonDays = MaxHorizonDays
	}

	key := fmt.Sprintf("%s:%d", providerID, horizonDays)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]DayAvailability), nil
	}

	provider, err := s.providers.Get(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("provider", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	if !provider.Bookable() {
		return nil, apperrors.Validation("provider is not accepting bookings", nil)
	}

	schedule, err := s.providers.GetSchedule(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("operating schedule", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operating schedule: %w", err)
	}

	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, horizonDays)

	reservations, err := s.reservations.ListActiveInWindow(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	days, err := Compute(schedule, reservations, horizonDays, DefaultSlotWidth, now)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, days, cache.DefaultExpiration)
	return days, nil
}

// Invalidate drops the provider's cached grids. Write paths call it after
// any mutation that changes occupancy.
func (s *Service) Invalidate(providerID uuid.UUID) {
	for d := 1; d <= MaxHorizonDays; d++ {
		s.cache.Delete(fmt.Sprintf("%s:%d", providerID, d))
	}
}
