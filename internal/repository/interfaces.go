package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// Tx is the handle returned by BeginTx. The postgres repositories back
	// it with *sqlx.Tx; services only ever commit or roll it back.
	Tx interface {
		Commit() error
		Rollback() error
	}

	ProviderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		GetSchedule(ctx context.Context, providerID uuid.UUID) (*model.OperatingSchedule, error)
		UpsertSchedule(ctx context.Context, schedule *model.OperatingSchedule) error
	}

	SubjectRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Subject, error)
	}

	// ReservationRepository persists reservations. Conflict-sensitive
	// writes run inside a transaction that first takes the provider
	// advisory lock, so a concurrent check-then-insert on the same
	// provider serializes instead of racing.
	ReservationRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
		List(ctx context.Context, filters *model.ReservationFilters) ([]*model.Reservation, error)
		ListSeries(ctx context.Context, seriesID uuid.UUID) ([]*model.Reservation, error)
		ListActiveInWindow(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.Reservation, error)
		Update(ctx context.Context, reservation *model.Reservation) error

		BeginTx(ctx context.Context) (Tx, error)
		LockProviderTx(ctx context.Context, tx Tx, providerID uuid.UUID) error
		ListActiveInWindowTx(ctx context.Context, tx Tx, providerID uuid.UUID, from, to time.Time) ([]*model.Reservation, error)
		CreateTx(ctx context.Context, tx Tx, reservation *model.Reservation) error
		UpdateTx(ctx context.Context, tx Tx, reservation *model.Reservation) error

		ListDueReminders(ctx context.Context, windowStart, windowEnd time.Time) ([]*model.Reservation, error)
		MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	// WaitlistRepository persists waitlist entries. Renumbering methods
	// are transactional for the same reason: position arithmetic for one
	// provider must never interleave.
	WaitlistRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.WaitlistEntry, error)
		ListActive(ctx context.Context, providerID uuid.UUID) ([]*model.WaitlistEntry, error)

		BeginTx(ctx context.Context) (Tx, error)
		LockProviderTx(ctx context.Context, tx Tx, providerID uuid.UUID) error
		GetTx(ctx context.Context, tx Tx, id uuid.UUID) (*model.WaitlistEntry, error)
		ActiveEmailExistsTx(ctx context.Context, tx Tx, providerID uuid.UUID, email string) (bool, error)
		MaxActivePositionTx(ctx context.Context, tx Tx, providerID uuid.UUID) (int, error)
		InsertTx(ctx context.Context, tx Tx, entry *model.WaitlistEntry) error
		DeleteTx(ctx context.Context, tx Tx, id uuid.UUID) error
		ShiftPositionsAfterTx(ctx context.Context, tx Tx, providerID uuid.UUID, position int) error
		ShiftRangeTx(ctx context.Context, tx Tx, providerID uuid.UUID, lo, hi, delta int) error
		SetPositionTx(ctx context.Context, tx Tx, id uuid.UUID, position int) error
		MarkNotifiedTx(ctx context.Context, tx Tx, id uuid.UUID, at time.Time) error
	}
)
