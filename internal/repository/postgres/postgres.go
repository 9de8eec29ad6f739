package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/carebridge/booking-api/internal/repository"
)

type providerRepository struct {
	db *sqlx.DB
}

type subjectRepository struct {
	db *sqlx.DB
}

type reservationRepository struct {
	db *sqlx.DB
}

type waitlistRepository struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) repository.ProviderRepository {
	return &providerRepository{db: db}
}

func NewSubjectRepository(db *sqlx.DB) repository.SubjectRepository {
	return &subjectRepository{db: db}
}

func NewReservationRepository(db *sqlx.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

func NewWaitlistRepository(db *sqlx.DB) repository.WaitlistRepository {
	return &waitlistRepository{db: db}
}

// sqlTx unwraps the transaction handle. Only handles minted by these
// repositories' BeginTx ever reach the Tx methods.
func sqlTx(tx repository.Tx) *sqlx.Tx {
	return tx.(*sqlx.Tx)
}
