package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
	"github.com/carebridge/booking-api/internal/service/notification"
	"github.com/carebridge/booking-api/internal/service/recurrence"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
	"github.com/carebridge/booking-api/pkg/metrics"
	"github.com/carebridge/booking-api/pkg/ratelimit"
)

// Business rule constants
const (
	// LeadTime is the minimum interval between now and a reservation's
	// scheduled time for create/cancel/reschedule to be permitted.
	LeadTime = 24 * time.Hour

	DefaultDurationMinutes = 30
)

type Service struct {
	reservations repository.ReservationRepository
	providers    repository.ProviderRepository
	subjects     repository.SubjectRepository
	limiter      ratelimit.Limiter
	notifSvc     notification.Service
	metrics      *metrics.Metrics

	// now is injected so time-dependent policy checks stay deterministic
	// under test.
	now func() time.Time

	// invalidate drops cached availability grids for a provider. Fired
	// after every write that changes slot occupancy.
	invalidate func(uuid.UUID)
}

func NewService(
	reservations repository.ReservationRepository,
	providers repository.ProviderRepository,
	subjects repository.SubjectRepository,
	limiter ratelimit.Limiter,
	notifSvc notification.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		reservations: reservations,
		providers:    providers,
		subjects:     subjects,
		limiter:      limiter,
		notifSvc:     notifSvc,
		metrics:      m,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithInvalidator registers the availability cache invalidation hook.
func (s *Service) WithInvalidator(fn func(uuid.UUID)) *Service {
	s.invalidate = fn
	return s
}

func (s *Service) invalidateAvailability(providerID uuid.UUID) {
	if s.invalidate != nil {
		s.invalidate(providerID)
	}
}

// CreateSingle books one reservation. The conflict check and the insert
// run in one transaction under the provider advisory lock, so two
// concurrent requests for the same slot cannot both succeed.
func (s *Service) CreateSingle(ctx context.Context, actor model.Actor, req *model.CreateReservationRequest) (*model.Reservation, error) {
	providerID, subjectID, err := s.parseIDs(req.ProviderID, req.SubjectID)
	if err != nil {
		return nil, err
	}

	if err := s.checkLimit(ctx, actor, ratelimit.BucketCreateBooking); err != nil {
		return nil, err
	}

	provider, err := s.checkProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if err := s.checkSubjectOwnership(ctx, actor, subjectID); err != nil {
		return nil, err
	}

	if err := s.checkLeadTime(req.ScheduledAt, "bookings must be made at least 24 hours in advance"); err != nil {
		return nil, err
	}

	reservation := &model.Reservation{
		ProviderID:      providerID,
		ClientID:        actor.ID,
		SubjectID:       subjectID,
		ScheduledAt:     &req.ScheduledAt,
		DurationMinutes: durationOrDefault(req.DurationMinutes),
		Status:          model.ReservationStatusPending,
		Pattern:         model.RecurrenceNone,
		Notes:           req.Notes,
	}

	if err := s.insertGuarded(ctx, providerID, []*model.Reservation{reservation}); err != nil {
		return nil, err
	}

	s.invalidateAvailability(providerID)
	s.metrics.BookingsCreated.WithLabelValues(bookingKind(provider.Type)).Inc()
	return reservation, nil
}

// CreateSeries expands a recurrence and books every occurrence atomically:
// each expanded timestamp is conflict-checked before any insert commits,
// and the first conflicting occurrence aborts the whole batch.
func (s *Service) CreateSeries(ctx context.Context, actor model.Actor, req *model.CreateSeriesRequest) ([]*model.Reservation, error) {
	providerID, subjectID, err := s.parseIDs(req.ProviderID, req.SubjectID)
	if err != nil {
		return nil, err
	}

	pattern := model.RecurrencePattern(req.Pattern)
	if !pattern.Valid() || pattern == model.RecurrenceNone {
		return nil, apperrors.Validation("invalid recurrence pattern", nil)
	}

	if err := s.checkLimit(ctx, actor, ratelimit.BucketCreateSeries); err != nil {
		return nil, err
	}

	provider, err := s.checkProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if err := s.checkSubjectOwnership(ctx, actor, subjectID); err != nil {
		return nil, err
	}

	if err := s.checkLeadTime(req.ScheduledAt, "bookings must be made at least 24 hours in advance"); err != nil {
		return nil, err
	}

	occurrences := recurrence.Expand(pattern, req.ScheduledAt, req.RecurrenceEnd)
	seriesID := recurrence.NewSeriesID()

	recurrenceEnd := req.RecurrenceEnd
	if recurrenceEnd.IsZero() {
		recurrenceEnd = req.ScheduledAt.Add(recurrence.DefaultHorizon)
	}

	reservations := make([]*model.Reservation, 0, len(occurrences))
	for _, occ := range occurrences {
		occ := occ
		reservations = append(reservations, &model.Reservation{
			ProviderID:      providerID,
			ClientID:        actor.ID,
			SubjectID:       subjectID,
			ScheduledAt:     &occ,
			DurationMinutes: durationOrDefault(req.DurationMinutes),
			Status:          model.ReservationStatusPending,
			SeriesID:        &seriesID,
			Pattern:         pattern,
			RecurrenceEnd:   &recurrenceEnd,
			Notes:           req.Notes,
		})
	}

	if err := s.insertGuarded(ctx, providerID, reservations); err != nil {
		return nil, err
	}

	s.invalidateAvailability(providerID)
	s.metrics.SeriesCreated.Inc()
	s.metrics.BookingsCreated.WithLabelValues(bookingKind(provider.Type)).Add(float64(len(reservations)))
	return reservations, nil
}

// insertGuarded runs the write-path conflict guard: take the provider
// lock, re-read active reservations around every candidate, reject on the
// first hit, then insert the whole batch. All inside one transaction.
func (s *Service) insertGuarded(ctx context.Context, providerID uuid.UUID, batch []*model.Reservation) error {
	tx, err := s.reservations.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin booking transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.reservations.LockProviderTx(ctx, tx, providerID); err != nil {
		return err
	}

	first := *batch[0].ScheduledAt
	last := *batch[len(batch)-1].ScheduledAt
	existing, err := s.reservations.ListActiveInWindowTx(ctx, tx, providerID,
		first.Add(-ConflictWindow), last.Add(ConflictWindow))
	if err != nil {
		return err
	}

	if i := FirstConflict(batch, existing); i >= 0 {
		s.metrics.ConflictsRejected.Inc()
		if len(batch) > 1 {
			return apperrors.SlotTaken(fmt.Sprintf(
				"occurrence %d at %s is no longer available",
				i+1, batch[i].ScheduledAt.Format(time.RFC3339)))
		}
		return apperrors.SlotTaken("this time slot is no longer available")
	}

	for _, reservation := range batch {
		if err := s.reservations.CreateTx(ctx, tx, reservation); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking transaction: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Reservation, error) {
	reservation, err := s.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *Service) List(ctx context.Context, actor model.Actor, filters *model.ReservationFilters) ([]*model.Reservation, error) {
	if actor.Role == model.RoleClient {
		filters.ClientID = actor.ID
	}
	reservations, err := s.reservations.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// Cancel cancels one reservation, enforcing the 24-hour policy when the
// reservation has a scheduled time.
func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Reservation, error) {
	reservation, err := s.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, reservation); err != nil {
		return nil, err
	}

	if !reservation.Status.CanTransition(model.ReservationStatusCancelled) {
		return nil, apperrors.InvalidTransition(string(reservation.Status), string(model.ReservationStatusCancelled))
	}

	if reservation.ScheduledAt != nil {
		if err := s.checkLeadTime(*reservation.ScheduledAt, "cancellations must be made at least 24 hours in advance"); err != nil {
			return nil, err
		}
	}

	s.applyCancellation(reservation, reason)
	if err := s.reservations.Update(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	s.invalidateAvailability(reservation.ProviderID)
	s.metrics.BookingsCancelled.Inc()
	s.notifyAsync(model.TemplateBookingCancelled, reservation)
	return reservation, nil
}

// CancelSeries cancels the future members of a series. The 24-hour check
// applies to every future occurrence individually; if any is inside the
// window the whole cancellation is rejected, naming the blocking
// occurrence. Past and completed members are never touched.
func (s *Service) CancelSeries(ctx context.Context, actor model.Actor, seriesID uuid.UUID, reason string) ([]*model.Reservation, error) {
	members, err := s.reservations.ListSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	if len(members) == 0 {
		return nil, apperrors.NotFound("series", nil)
	}

	if err := s.authorize(ctx, actor, members[0]); err != nil {
		return nil, err
	}

	now := s.now()
	var future []*model.Reservation
	for _, member := range members {
		if !member.Status.Active() || member.ScheduledAt == nil {
			continue
		}
		if member.ScheduledAt.After(now) {
			future = append(future, member)
		}
	}

	for _, member := range future {
		if member.ScheduledAt.Sub(now) < LeadTime {
			return nil, apperrors.TooSoon(fmt.Sprintf(
				"occurrence at %s is within the 24-hour window; the series cannot be cancelled",
				member.ScheduledAt.Format(time.RFC3339)))
		}
	}

	tx, err := s.reservations.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin cancellation transaction: %w", err)
	}
	defer tx.Rollback()

	for _, member := range future {
		s.applyCancellation(member, reason)
		if err := s.reservations.UpdateTx(ctx, tx, member); err != nil {
			return nil, fmt.Errorf("failed to cancel series member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit series cancellation: %w", err)
	}

	s.invalidateAvailability(members[0].ProviderID)
	s.metrics.BookingsCancelled.Add(float64(len(future)))
	return future, nil
}

// Reschedule moves a reservation to a new time. The conflict guard re-runs
// with the reservation's own id excluded, status drops back to PENDING to
// force re-confirmation, and the prior time is recorded in the notes audit
// trail rather than overwritten.
func (s *Service) Reschedule(ctx context.Context, actor model.Actor, id uuid.UUID, newTime time.Time) (*model.Reservation, error) {
	reservation, err := s.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, reservation); err != nil {
		return nil, err
	}

	if !reservation.Status.Active() {
		return nil, apperrors.InvalidTransition(string(reservation.Status), string(model.ReservationStatusPending))
	}

	if err := s.checkLeadTime(newTime, "reschedules must be made at least 24 hours in advance"); err != nil {
		return nil, err
	}

	tx, err := s.reservations.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reschedule transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.reservations.LockProviderTx(ctx, tx, reservation.ProviderID); err != nil {
		return nil, err
	}

	existing, err := s.reservations.ListActiveInWindowTx(ctx, tx, reservation.ProviderID,
		newTime.Add(-ConflictWindow), newTime.Add(ConflictWindow))
	if err != nil {
		return nil, err
	}

	if HasConflict(newTime, existing, &reservation.ID) {
		s.metrics.ConflictsRejected.Inc()
		return nil, apperrors.SlotTaken("this time slot is no longer available")
	}

	if reservation.ScheduledAt != nil {
		line := fmt.Sprintf("[rescheduled from %s]", reservation.ScheduledAt.Format(time.RFC3339))
		if reservation.Notes != "" {
			reservation.Notes += "\n"
		}
		reservation.Notes += line
	}
	reservation.ScheduledAt = &newTime
	reservation.Status = model.ReservationStatusPending

	if err := s.reservations.UpdateTx(ctx, tx, reservation); err != nil {
		return nil, fmt.Errorf("failed to reschedule reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reschedule: %w", err)
	}

	s.invalidateAvailability(reservation.ProviderID)
	s.metrics.Reschedules.Inc()
	return reservation, nil
}

// Confirm moves a pending reservation to CONFIRMED. Provider-side only.
func (s *Service) Confirm(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Reservation, error) {
	reservation, err := s.transition(ctx, actor, id, model.ReservationStatusConfirmed)
	if err != nil {
		return nil, err
	}
	s.notifyAsync(model.TemplateBookingConfirmed, reservation)
	return reservation, nil
}

// Complete marks a confirmed reservation as attended.
func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Reservation, error) {
	return s.transition(ctx, actor, id, model.ReservationStatusCompleted)
}

// MarkNoShow marks a confirmed reservation as missed.
func (s *Service) MarkNoShow(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Reservation, error) {
	return s.transition(ctx, actor, id, model.ReservationStatusNoShow)
}

func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, target model.ReservationStatus) (*model.Reservation, error) {
	reservation, err := s.getReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeProviderSide(ctx, actor, reservation); err != nil {
		return nil, err
	}

	if !reservation.Status.CanTransition(target) {
		return nil, apperrors.InvalidTransition(string(reservation.Status), string(target))
	}

	reservation.Status = target
	if err := s.reservations.Update(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}

	// Terminal transitions free the slot.
	if !target.Active() {
		s.invalidateAvailability(reservation.ProviderID)
	}
	return reservation, nil
}

func (s *Service) getReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	reservation, err := s.reservations.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("reservation", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return reservation, nil
}

func (s *Service) parseIDs(providerID, subjectID string) (uuid.UUID, *uuid.UUID, error) {
	pid, err := uuid.Parse(providerID)
	if err != nil {
		return uuid.Nil, nil, apperrors.Validation("invalid provider ID", err)
	}
	if subjectID == "" {
		return pid, nil, nil
	}
	sid, err := uuid.Parse(subjectID)
	if err != nil {
		return uuid.Nil, nil, apperrors.Validation("invalid subject ID", err)
	}
	return pid, &sid, nil
}

func (s *Service) checkLimit(ctx context.Context, actor model.Actor, bucket ratelimit.Bucket) error {
	decision, err := s.limiter.CheckLimit(ctx, actor.ID.String(), bucket)
	if err != nil {
		// A broken limiter should not take bookings down with it.
		log.Warn().Err(err).Str("bucket", string(bucket)).Msg("rate limit check failed")
		return nil
	}
	if !decision.Allowed {
		return apperrors.TooManyRequests(decision.RetryAfter)
	}
	return nil
}

func (s *Service) checkProvider(ctx context.Context, providerID uuid.UUID) (*model.Provider, error) {
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
	return provider, nil
}

func (s *Service) checkSubjectOwnership(ctx context.Context, actor model.Actor, subjectID *uuid.UUID) error {
	if subjectID == nil {
		return nil
	}
	subject, err := s.subjects.Get(ctx, *subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("subject", err)
	}
	if err != nil {
		return fmt.Errorf("failed to get subject: %w", err)
	}
	if subject.ClientID != actor.ID && actor.Role != model.RoleAdmin {
		return apperrors.Forbidden("subject does not belong to the requesting client")
	}
	return nil
}

func (s *Service) checkLeadTime(target time.Time, message string) error {
	if target.Sub(s.now()) < LeadTime {
		return apperrors.TooSoon(message)
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
	switch actor.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleClient:
		if reservation.ClientID == actor.ID {
			return nil
		}
	case model.RoleProvider:
		return s.authorizeProviderSide(ctx, actor, reservation)
	}
	return apperrors.Forbidden("not allowed to access this reservation")
}

func (s *Service) authorizeProviderSide(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if actor.Role != model.RoleProvider {
		return apperrors.Forbidden("provider role required")
	}
	provider, err := s.providers.Get(ctx, reservation.ProviderID)
	if err != nil {
		return fmt.Errorf("failed to get provider: %w", err)
	}
	if provider.OwnerID != actor.ID {
		return apperrors.Forbidden("not the owner of this provider")
	}
	return nil
}

func (s *Service) applyCancellation(reservation *model.Reservation, reason string) {
	now := s.now()
	reservation.Status = model.ReservationStatusCancelled
	reservation.CancelledAt = &now
	if reason != "" {
		reservation.CancelReason = &reason
	}
}

// notifyAsync fires the notification without blocking the caller. Delivery
// failures are logged and counted inside the notification service; they
// never affect the committed state change.
func (s *Service) notifyAsync(kind model.TemplateKind, reservation *model.Reservation) {
	recipient := model.Recipient{UserID: reservation.ClientID}
	payload := map[string]interface{}{
		"reservation_id": reservation.ID,
		"provider_id":    reservation.ProviderID,
	}
	if reservation.ScheduledAt != nil {
		payload["scheduled_at"] = reservation.ScheduledAt.Format(time.RFC3339)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifSvc.Notify(ctx, recipient, kind, payload); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("booking notification failed")
		}
	}()
}

func durationOrDefault(minutes int) int {
	if minutes <= 0 {
		return DefaultDurationMinutes
	}
	return minutes
}

func bookingKind(t model.ProviderType) string {
	if t == model.ProviderTypeDaycare {
		return "tour"
	}
	return "appointment"
}
