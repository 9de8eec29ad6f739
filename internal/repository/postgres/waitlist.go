package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
)

const waitlistColumns = `
	id, provider_id, client_name, email, phone, desired_date, position,
	notes, notified_at, created_at, updated_at
`

func (r *waitlistRepository) Get(ctx context.Context, id uuid.UUID) (*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = $1`

	var entry model.WaitlistEntry
	err := r.db.GetContext(ctx, &entry, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return &entry, nil
}

func (r *waitlistRepository) ListActive(ctx context.Context, providerID uuid.UUID) ([]*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + `
		FROM waitlist_entries
		WHERE provider_id = $1 AND notified_at IS NULL
		ORDER BY position ASC`

	var entries []*model.WaitlistEntry
	err := r.db.SelectContext(ctx, &entries, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	return entries, nil
}

func (r *waitlistRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// LockProviderTx serializes waitlist renumbering per provider. Every
// insert/remove/reorder/promote takes this lock first so positions stay a
// contiguous 1..N sequence under concurrent operations.
func (r *waitlistRepository) LockProviderTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID) error {
	if _, err := sqlTx(tx).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':waitlist'))`, providerID); err != nil {
		return fmt.Errorf("failed to lock provider waitlist: %w", err)
	}
	return nil
}

func (r *waitlistRepository) GetTx(ctx context.Context, tx repository.Tx, id uuid.UUID) (*model.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = $1`

	var entry model.WaitlistEntry
	err := sqlTx(tx).GetContext(ctx, &entry, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry in tx: %w", err)
	}
	return &entry, nil
}

func (r *waitlistRepository) ActiveEmailExistsTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM waitlist_entries
			WHERE provider_id = $1 AND email = $2 AND notified_at IS NULL
		)
	`
	var exists bool
	if err := sqlTx(tx).GetContext(ctx, &exists, query, providerID, email); err != nil {
		return false, fmt.Errorf("failed to check waitlist email: %w", err)
	}
	return exists, nil
}

func (r *waitlistRepository) MaxActivePositionTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(MAX(position), 0)
		FROM waitlist_entries
		WHERE provider_id = $1 AND notified_at IS NULL
	`
	var max int
	if err := sqlTx(tx).GetContext(ctx, &max, query, providerID); err != nil {
		return 0, fmt.Errorf("failed to get max waitlist position: %w", err)
	}
	return max, nil
}

func (r *waitlistRepository) InsertTx(ctx context.Context, tx repository.Tx, entry *model.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (
			id, provider_id, client_name, email, phone, desired_date,
			position, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = time.Now()

	_, err := sqlTx(tx).ExecContext(ctx, query,
		entry.ID,
		entry.ProviderID,
		entry.ClientName,
		entry.Email,
		entry.Phone,
		entry.DesiredDate,
		entry.Position,
		entry.Notes,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert waitlist entry: %w", err)
	}
	return nil
}

func (r *waitlistRepository) DeleteTx(ctx context.Context, tx repository.Tx, id uuid.UUID) error {
	result, err := sqlTx(tx).ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waitlist entry: %w", err)
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

// ShiftPositionsAfterTx closes the gap left by a removed or promoted entry:
// every active entry behind it moves up one place.
func (r *waitlistRepository) ShiftPositionsAfterTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID, position int) error {
	query := `
		UPDATE waitlist_entries
		SET position = position - 1, updated_at = $3
		WHERE provider_id = $1 AND notified_at IS NULL AND position > $2
	`
	if _, err := sqlTx(tx).ExecContext(ctx, query, providerID, position, time.Now()); err != nil {
		return fmt.Errorf("failed to shift waitlist positions: %w", err)
	}
	return nil
}

// ShiftRangeTx moves every active entry with lo <= position <= hi by delta.
// Reorder uses it to open or close the gap between an entry's old and new
// positions.
func (r *waitlistRepository) ShiftRangeTx(ctx context.Context, tx repository.Tx, providerID uuid.UUID, lo, hi, delta int) error {
	query := `
		UPDATE waitlist_entries
		SET position = position + $4, updated_at = $5
		WHERE provider_id = $1 AND notified_at IS NULL
		AND position >= $2 AND position <= $3
	`
	if _, err := sqlTx(tx).ExecContext(ctx, query, providerID, lo, hi, delta, time.Now()); err != nil {
		return fmt.Errorf("failed to shift waitlist range: %w", err)
	}
	return nil
}

func (r *waitlistRepository) SetPositionTx(ctx context.Context, tx repository.Tx, id uuid.UUID, position int) error {
	query := `UPDATE waitlist_entries SET position = $1, updated_at = $2 WHERE id = $3`

	if _, err := sqlTx(tx).ExecContext(ctx, query, position, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set waitlist position: %w", err)
	}
	return nil
}

func (r *waitlistRepository) MarkNotifiedTx(ctx context.Context, tx repository.Tx, id uuid.UUID, at time.Time) error {
	// notified_at is written exactly once; an entry is never un-notified.
	query := `
		UPDATE waitlist_entries
		SET notified_at = $1, updated_at = $1
		WHERE id = $2 AND notified_at IS NULL
	`
	result, err := sqlTx(tx).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark waitlist entry notified: %w", err)
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
