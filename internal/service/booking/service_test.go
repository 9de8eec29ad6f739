package booking

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
	"github.com/carebridge/booking-api/pkg/metrics"
	"github.com/carebridge/booking-api/pkg/ratelimit"
)

// Registered once: promauto panics on duplicate collectors.
var testMetrics = metrics.NewMetrics("booking_test")

var pinnedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeReservations struct {
	repository.ReservationRepository
	items  map[uuid.UUID]*model.Reservation
	series map[uuid.UUID][]*model.Reservation

	inserted []*model.Reservation
	locks    int
	lastTx   *fakeTx
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{
		items:  map[uuid.UUID]*model.Reservation{},
		series: map[uuid.UUID][]*model.Reservation{},
	}
}

func (f *fakeReservations) Get(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r, nil
}

func (f *fakeReservations) Update(_ context.Context, r *model.Reservation) error {
	f.items[r.ID] = r
	return nil
}

func (f *fakeReservations) ListSeries(_ context.Context, seriesID uuid.UUID) ([]*model.Reservation, error) {
	return f.series[seriesID], nil
}

func (f *fakeReservations) BeginTx(context.Context) (repository.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeReservations) LockProviderTx(_ context.Context, _ repository.Tx, _ uuid.UUID) error {
	f.locks++
	return nil
}

func (f *fakeReservations) ListActiveInWindowTx(_ context.Context, _ repository.Tx, providerID uuid.UUID, from, to time.Time) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range f.items {
		if r.ProviderID != providerID || !r.Status.Active() || r.ScheduledAt == nil {
			continue
		}
		if !r.ScheduledAt.Before(from) && r.ScheduledAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReservations) CreateTx(_ context.Context, _ repository.Tx, r *model.Reservation) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.inserted = append(f.inserted, r)
	f.items[r.ID] = r
	return nil
}

func (f *fakeReservations) UpdateTx(_ context.Context, _ repository.Tx, r *model.Reservation) error {
	f.items[r.ID] = r
	return nil
}

type fakeProviders struct {
	repository.ProviderRepository
	items map[uuid.UUID]*model.Provider
}

func (f *fakeProviders) Get(_ context.Context, id uuid.UUID) (*model.Provider, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

type fakeSubjects struct {
	repository.SubjectRepository
	items map[uuid.UUID]*model.Subject
}

func (f *fakeSubjects) Get(_ context.Context, id uuid.UUID) (*model.Subject, error) {
	s, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

type fakeLimiter struct {
	deny       bool
	retryAfter time.Duration
}

func (f *fakeLimiter) CheckLimit(context.Context, string, ratelimit.Bucket) (ratelimit.Decision, error) {
	if f.deny {
		return ratelimit.Decision{Allowed: false, RetryAfter: f.retryAfter}, nil
	}
	return ratelimit.Decision{Allowed: true}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []model.TemplateKind
}

func (f *fakeNotifier) Notify(_ context.Context, _ model.Recipient, kind model.TemplateKind, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	return nil
}

type fixture struct {
	svc          *Service
	reservations *fakeReservations
	providers    *fakeProviders
	subjects     *fakeSubjects
	limiter      *fakeLimiter

	client      model.Actor
	owner       model.Actor
	provider    *model.Provider
	invalidated []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		reservations: newFakeReservations(),
		providers:    &fakeProviders{items: map[uuid.UUID]*model.Provider{}},
		subjects:     &fakeSubjects{items: map[uuid.UUID]*model.Subject{}},
		limiter:      &fakeLimiter{},
	}

	f.client = model.Actor{ID: uuid.New(), Role: model.RoleClient}
	f.owner = model.Actor{ID: uuid.New(), Role: model.RoleProvider}
	f.provider = &model.Provider{
		Base:    model.Base{ID: uuid.New()},
		OwnerID: f.owner.ID,
		Name:    "Sunny Days Daycare",
		Type:    model.ProviderTypeDaycare,
		Status:  model.ProviderStatusActive,
	}
	f.providers.items[f.provider.ID] = f.provider

	f.svc = NewService(f.reservations, f.providers, f.subjects, f.limiter, &fakeNotifier{}, testMetrics).
		WithClock(func() time.Time { return pinnedNow }).
		WithInvalidator(func(id uuid.UUID) { f.invalidated = append(f.invalidated, id) })
	return f
}

func (f *fixture) addReservation(scheduledAt time.Time, status model.ReservationStatus) *model.Reservation {
	r := &model.Reservation{
		Base:            model.Base{ID: uuid.New()},
		ProviderID:      f.provider.ID,
		ClientID:        f.client.ID,
		ScheduledAt:     &scheduledAt,
		DurationMinutes: 30,
		Status:          status,
		Pattern:         model.RecurrenceNone,
	}
	f.reservations.items[r.ID] = r
	return r
}

func TestCreateSingleRejectsShortNotice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(23 * time.Hour),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrTooSoon))
}

func TestCreateSingleUnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  uuid.NewString(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCreateSingleSuspendedProvider(t *testing.T) {
	f := newFixture(t)
	f.provider.Status = model.ProviderStatusSuspended

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestCreateSingleForeignSubject(t *testing.T) {
	f := newFixture(t)
	subject := &model.Subject{Base: model.Base{ID: uuid.New()}, ClientID: uuid.New(), Name: "Alex"}
	f.subjects.items[subject.ID] = subject

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		SubjectID:   subject.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestCreateSingleRateLimited(t *testing.T) {
	f := newFixture(t)
	f.limiter.deny = true
	f.limiter.retryAfter = 15 * time.Minute

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	require.True(t, apperrors.IsCode(err, apperrors.ErrTooManyRequests))

	appErr := err.(*apperrors.AppError)
	assert.Equal(t, 15*time.Minute, appErr.RetryAfter)
}

func TestCreateSingleInsertsUnderProviderLock(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	require.Len(t, f.reservations.inserted, 1)
	assert.Equal(t, created.ID, f.reservations.inserted[0].ID)
	assert.Equal(t, model.ReservationStatusPending, created.Status)
	assert.Equal(t, 1, f.reservations.locks)
	assert.True(t, f.reservations.lastTx.committed)
	assert.Contains(t, f.invalidated, f.provider.ID)
}

func TestCreateSingleRejectsOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	f.addReservation(pinnedNow.Add(48*time.Hour+10*time.Minute), model.ReservationStatusConfirmed)

	_, err := f.svc.CreateSingle(context.Background(), f.client, &model.CreateReservationRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
	})
	require.True(t, apperrors.IsCode(err, apperrors.ErrSlotTaken))

	assert.Empty(t, f.reservations.inserted)
	assert.True(t, f.reservations.lastTx.rolledBack)
}

func TestCreateSeriesInsertsEveryOccurrence(t *testing.T) {
	f := newFixture(t)
	start := pinnedNow.Add(48 * time.Hour)

	created, err := f.svc.CreateSeries(context.Background(), f.client, &model.CreateSeriesRequest{
		ProviderID:    f.provider.ID.String(),
		ScheduledAt:   start,
		Pattern:       "weekly",
		RecurrenceEnd: start.AddDate(0, 0, 28),
	})
	require.NoError(t, err)
	require.Len(t, created, 5)
	assert.Len(t, f.reservations.inserted, 5)

	seriesID := created[0].SeriesID
	require.NotNil(t, seriesID)
	for i, r := range created {
		require.NotNil(t, r.SeriesID)
		assert.Equal(t, *seriesID, *r.SeriesID)
		assert.Equal(t, start.AddDate(0, 0, 7*i), *r.ScheduledAt)
	}
	assert.True(t, f.reservations.lastTx.committed)
}

func TestCreateSeriesAbortsWholeBatchOnMidOccurrenceConflict(t *testing.T) {
	f := newFixture(t)
	start := pinnedNow.Add(48 * time.Hour)

	// Occupies the third of five weekly occurrences.
	f.addReservation(start.AddDate(0, 0, 14), model.ReservationStatusPending)

	_, err := f.svc.CreateSeries(context.Background(), f.client, &model.CreateSeriesRequest{
		ProviderID:    f.provider.ID.String(),
		ScheduledAt:   start,
		Pattern:       "weekly",
		RecurrenceEnd: start.AddDate(0, 0, 28),
	})
	require.True(t, apperrors.IsCode(err, apperrors.ErrSlotTaken))
	assert.Contains(t, err.Error(), "occurrence 3")

	// Nothing landed, not even the conflict-free occurrences.
	assert.Empty(t, f.reservations.inserted)
	assert.True(t, f.reservations.lastTx.rolledBack)
	assert.Empty(t, f.invalidated)
}

func TestCreateSeriesRejectsBadPattern(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSeries(context.Background(), f.client, &model.CreateSeriesRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
		Pattern:     "daily",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))

	_, err = f.svc.CreateSeries(context.Background(), f.client, &model.CreateSeriesRequest{
		ProviderID:  f.provider.ID.String(),
		ScheduledAt: pinnedNow.Add(48 * time.Hour),
		Pattern:     "none",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrValidation))
}

func TestCancelSetsStatusAndAudit(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusConfirmed)

	cancelled, err := f.svc.Cancel(context.Background(), f.client, r.ID, "schedule change")
	require.NoError(t, err)

	assert.Equal(t, model.ReservationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, pinnedNow, *cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "schedule change", *cancelled.CancelReason)

	// Cached availability grids must not outlive the freed slot.
	assert.Contains(t, f.invalidated, f.provider.ID)
}

func TestCancelExactlyAtLeadTimeBoundary(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(LeadTime), model.ReservationStatusPending)

	_, err := f.svc.Cancel(context.Background(), f.client, r.ID, "")
	assert.NoError(t, err)
}

func TestCancelInsideWindow(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(12*time.Hour), model.ReservationStatusConfirmed)

	_, err := f.svc.Cancel(context.Background(), f.client, r.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrTooSoon))
	assert.Equal(t, model.ReservationStatusConfirmed, f.reservations.items[r.ID].Status)
}

func TestCancelTerminalReservation(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusCancelled)

	_, err := f.svc.Cancel(context.Background(), f.client, r.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestCancelForeignReservation(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusPending)

	stranger := model.Actor{ID: uuid.New(), Role: model.RoleClient}
	_, err := f.svc.Cancel(context.Background(), stranger, r.ID, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestCancelSeriesBlockedByImminentOccurrence(t *testing.T) {
	f := newFixture(t)
	seriesID := uuid.New()

	far := f.addReservation(pinnedNow.Add(7*24*time.Hour), model.ReservationStatusConfirmed)
	near := f.addReservation(pinnedNow.Add(12*time.Hour), model.ReservationStatusConfirmed)
	for _, r := range []*model.Reservation{near, far} {
		r.SeriesID = &seriesID
		r.Pattern = model.RecurrenceWeekly
	}
	f.reservations.series[seriesID] = []*model.Reservation{near, far}

	_, err := f.svc.CancelSeries(context.Background(), f.client, seriesID, "moving away")
	require.True(t, apperrors.IsCode(err, apperrors.ErrTooSoon))
	assert.Contains(t, err.Error(), near.ScheduledAt.Format(time.RFC3339))

	// Nothing was touched.
	assert.Equal(t, model.ReservationStatusConfirmed, f.reservations.items[near.ID].Status)
	assert.Equal(t, model.ReservationStatusConfirmed, f.reservations.items[far.ID].Status)
}

func TestCancelSeriesUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CancelSeries(context.Background(), f.client, uuid.New(), "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestRescheduleResetsStatusAndKeepsAudit(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusConfirmed)
	oldTime := r.ScheduledAt.Format(time.RFC3339)

	newTime := pinnedNow.Add(72 * time.Hour)
	moved, err := f.svc.Reschedule(context.Background(), f.client, r.ID, newTime)
	require.NoError(t, err)

	assert.Equal(t, newTime, *moved.ScheduledAt)
	assert.Equal(t, model.ReservationStatusPending, moved.Status)
	assert.Contains(t, moved.Notes, "[rescheduled from "+oldTime+"]")
	assert.True(t, f.reservations.lastTx.committed)
	assert.Contains(t, f.invalidated, f.provider.ID)
}

func TestRescheduleRequiresActiveStatus(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusCompleted)

	_, err := f.svc.Reschedule(context.Background(), f.client, r.ID, pinnedNow.Add(72*time.Hour))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestRescheduleInsideWindow(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusConfirmed)

	_, err := f.svc.Reschedule(context.Background(), f.client, r.ID, pinnedNow.Add(6*time.Hour))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrTooSoon))
}

func TestConfirmByOwner(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusPending)

	confirmed, err := f.svc.Confirm(context.Background(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusConfirmed, confirmed.Status)
}

func TestConfirmByClientForbidden(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusPending)

	_, err := f.svc.Confirm(context.Background(), f.client, r.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	pending := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusPending)

	_, err := f.svc.Complete(context.Background(), f.owner, pending.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	confirmed := f.addReservation(pinnedNow.Add(-2*time.Hour), model.ReservationStatusConfirmed)
	done, err := f.svc.Complete(context.Background(), f.owner, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusCompleted, done.Status)
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(-2*time.Hour), model.ReservationStatusConfirmed)

	missed, err := f.svc.MarkNoShow(context.Background(), f.owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusNoShow, missed.Status)
}

func TestGetAuthorization(t *testing.T) {
	f := newFixture(t)
	r := f.addReservation(pinnedNow.Add(48*time.Hour), model.ReservationStatusPending)

	_, err := f.svc.Get(context.Background(), f.client, r.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), f.owner, r.ID)
	assert.NoError(t, err)

	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	_, err = f.svc.Get(context.Background(), admin, r.ID)
	assert.NoError(t, err)

	stranger := model.Actor{ID: uuid.New(), Role: model.RoleClient}
	_, err = f.svc.Get(context.Background(), stranger, r.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))
}

func TestStatusTransitionTable(t *testing.T) {
	cases := []struct {
		from, to model.ReservationStatus
		ok       bool
	}{
		{model.ReservationStatusPending, model.ReservationStatusConfirmed, true},
		{model.ReservationStatusPending, model.ReservationStatusCancelled, true},
		{model.ReservationStatusPending, model.ReservationStatusCompleted, false},
		{model.ReservationStatusPending, model.ReservationStatusNoShow, false},
		{model.ReservationStatusConfirmed, model.ReservationStatusCompleted, true},
		{model.ReservationStatusConfirmed, model.ReservationStatusNoShow, true},
		{model.ReservationStatusConfirmed, model.ReservationStatusCancelled, true},
		{model.ReservationStatusConfirmed, model.ReservationStatusPending, true},
		{model.ReservationStatusCancelled, model.ReservationStatusPending, false},
		{model.ReservationStatusCompleted, model.ReservationStatusConfirmed, false},
		{model.ReservationStatusNoShow, model.ReservationStatusConfirmed, false},
	}

	for _, c := range cases {
		assert.Equalf(t, c.ok, c.from.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
}
