package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
)

// Service exposes provider profiles and operating-schedule management.
type Service struct {
	providers repository.ProviderRepository

	// onScheduleChange lets the availability cache drop stale grids when
	// hours change.
	onScheduleChange func(providerID uuid.UUID)
}

func NewService(providers repository.ProviderRepository, onScheduleChange func(uuid.UUID)) *Service {
	if onScheduleChange == nil {
		onScheduleChange = func(uuid.UUID) {}
	}
	return &Service{providers: providers, onScheduleChange: onScheduleChange}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	provider, err := s.providers.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("provider", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return provider, nil
}

func (s *Service) GetSchedule(ctx context.Context, providerID uuid.UUID) (*model.OperatingSchedule, error) {
	if _, err := s.Get(ctx, providerID); err != nil {
		return nil, err
	}
	schedule, err := s.providers.GetSchedule(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("operating schedule", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operating schedule: %w", err)
	}
	return schedule, nil
}

// UpdateSchedule replaces the provider's weekly hours. Owner only.
func (s *Service) UpdateSchedule(ctx context.Context, actor model.Actor, schedule *model.OperatingSchedule) (*model.OperatingSchedule, error) {
	provider, err := s.Get(ctx, schedule.ProviderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && provider.OwnerID != actor.ID {
		return nil, apperrors.Forbidden("not the owner of this provider")
	}

	if err := schedule.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	if err := s.providers.UpsertSchedule(ctx, schedule); err != nil {
		return nil, fmt.Errorf("failed to update operating schedule: %w", err)
	}

	s.onScheduleChange(schedule.ProviderID)
	return schedule, nil
}
