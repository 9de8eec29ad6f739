package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
)

const reservationColumns = `
	id, provider_id, client_id, subject_id, scheduled_at, duration_minutes,
	status, series_id, recurrence_pattern, recurrence_end, notes,
	cancelled_at, cancel_reason, reminder_sent_at, created_at, updated_at
`

func (r *reservationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	var reservation model.Reservation
	err := r.db.GetContext(ctx, &reservation, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &reservation, nil
}

func (r *reservationRepository) List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.ProviderID != uuid.Nil {
		query += fmt.Sprintf(" AND provider_id = $%d", argCount)
		args = append(args, filters.ProviderID)
		argCount++
	}

	if filters.ClientID != uuid.Nil {
		query += fmt.Sprintf(" AND client_id = $%d", argCount)
		args = append(args, filters.ClientID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_at < $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY scheduled_at ASC NULLS LAST"

	var reservations []*model.Reservation
	err := r.db.SelectContext(ctx, &reservations, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) ListSeries(ctx context.Context, seriesID uuid.UUID) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE series_id = $1
		ORDER BY scheduled_at ASC`

	var reservations []*model.Reservation
	err := r.db.SelectContext(ctx, &reservations, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) ListActiveInWindow(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE provider_id = $1
		AND status IN ('pending', 'confirmed')
		AND scheduled_at >= $2
		AND scheduled_at < $3
		ORDER BY scheduled_at ASC`

	var reservations []*model.Reservation
	err := r.db.SelectContext(ctx, &reservations, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list active reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	return r.update(ctx, r.db, reservation)
}

func (r *reservationRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// LockProviderTx takes a transaction-scoped advisory lock keyed on the
// provider. Concurrent conflict-check-then-insert sequences for the same
// provider serialize on this lock, closing the TOCTOU gap between the
// availability check and the write.
func (r *reservationRepository) LockProviderTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID) error {
	if _, err := sqlTx(tx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, providerID); err != nil {
		return fmt.Errorf("failed to lock provider: %w", err)
	}
	return nil
}

func (r *reservationRepository) ListActiveInWindowTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID, from, to time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE provider_id = $1
		AND status IN ('pending', 'confirmed')
		AND scheduled_at >= $2
		AND scheduled_at < $3
		ORDER BY scheduled_at ASC`

	var reservations []*model.Reservation
	err := sqlTx(tx).SelectContext(ctx, &reservations, query, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list active reservations in tx: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) CreateTx(ctx context.Context, tx repository.Tx, reservation *model.Reservation) error {
	query := `
		INSERT INTO reservations (
			id, provider_id, client_id, subject_id, scheduled_at,
			duration_minutes, status, series_id, recurrence_pattern,
			recurrence_end, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	reservation.CreatedAt = time.Now()
	reservation.UpdatedAt = time.Now()

	_, err := sqlTx(tx).ExecContext(ctx, query,
		reservation.ID,
		reservation.ProviderID,
		reservation.ClientID,
		reservation.SubjectID,
		reservation.ScheduledAt,
		reservation.DurationMinutes,
		reservation.Status,
		reservation.SeriesID,
		reservation.Pattern,
		reservation.RecurrenceEnd,
		reservation.Notes,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *reservationRepository) UpdateTx(ctx context.Context, tx repository.Tx, reservation *model.Reservation) error {
	return r.update(ctx, sqlTx(tx), reservation)
}

func (r *reservationRepository) update(ctx context.Context, execer sqlx.ExecerContext, reservation *model.Reservation) error {
	query := `
		UPDATE reservations
		SET scheduled_at = $1, status = $2, notes = $3,
			cancelled_at = $4, cancel_reason = $5, updated_at = $6
		WHERE id = $7
	`
	reservation.UpdatedAt = time.Now()

	result, err := execer.ExecContext(ctx, query,
		reservation.ScheduledAt,
		reservation.Status,
		reservation.Notes,
		reservation.CancelledAt,
		reservation.CancelReason,
		reservation.UpdatedAt,
		reservation.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *reservationRepository) ListDueReminders(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status IN ('pending', 'confirmed')
		AND scheduled_at >= $1
		AND scheduled_at < $2
		AND reminder_sent_at IS NULL
		ORDER BY scheduled_at ASC`

	var reservations []*model.Reservation
	err := r.db.SelectContext(ctx, &reservations, query, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE reservations SET reminder_sent_at = $1, updated_at = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
