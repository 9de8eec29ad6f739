package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
)

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
		SELECT id, owner_id, name, type, status, email, phone,
			   created_at, updated_at
		FROM providers
		WHERE id = $1
	`
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &provider, nil
}

func (r *providerRepository) GetSchedule(ctx context.Context, providerID uuid.UUID) (*model.OperatingSchedule, error) {
	query := `
		SELECT provider_id, opening, closing, weekdays, updated_at
		FROM operating_schedules
		WHERE provider_id = $1
	`
	var schedule model.OperatingSchedule
	err := r.db.GetContext(ctx, &schedule, query, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operating schedule: %w", err)
	}
	return &schedule, nil
}

func (r *providerRepository) UpsertSchedule(ctx context.Context, schedule *model.OperatingSchedule) error {
	query := `
		INSERT INTO operating_schedules (provider_id, opening, closing, weekdays, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_id)
		DO UPDATE SET opening = $2, closing = $3, weekdays = $4, updated_at = $5
	`
	schedule.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		schedule.ProviderID,
		schedule.Opening,
		schedule.Closing,
		schedule.Weekdays,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert operating schedule: %w", err)
	}
	return nil
}

func (r *subjectRepository) Get(ctx context.Context, id uuid.UUID) (*model.Subject, error) {
	query := `
		SELECT id, client_id, name, birth_date, created_at, updated_at
		FROM subjects
		WHERE id = $1
	`
	var subject model.Subject
	err := r.db.GetContext(ctx, &subject, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	return &subject, nil
}
