package waitlist

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
	apperrors "github.com/carebridge/booking-api/pkg/errors"
	"github.com/carebridge/booking-api/pkg/metrics"
	"github.com/carebridge/booking-api/pkg/ratelimit"
)

// Service maintains each provider's waitlist. Among active entries
// (notified_at null) positions are always a contiguous 1..N sequence;
// every mutation renumbers inside a transaction holding the provider
// waitlist lock so concurrent joins and removals cannot interleave.
type Service struct {
	entries   repository.WaitlistRepository
	providers repository.ProviderRepository
	limiter   ratelimit.Limiter
	notifSvc  notification.Service
	metrics   *metrics.Metrics

	now func() time.Time
}

// PromoteResult carries the committed promotion plus any notification
// delivery failure. The delivery failure never rolls back the promotion.
type PromoteResult struct {
	Entry         *model.WaitlistEntry
	DeliveryError error
}

func NewService(
	entries repository.WaitlistRepository,
	providers repository.ProviderRepository,
	limiter ratelimit.Limiter,
	notifSvc notification.Service,
	m *metrics.Metrics,
) *Service {
	return &Service{
		entries:   entries,
		providers: providers,
		limiter:   limiter,
		notifSvc:  notifSvc,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Join appends a client to the provider's waitlist at position max+1.
// A client may hold at most one active entry per provider, keyed by email.
func (s *Service) Join(ctx context.Context, providerID uuid.UUID, req *model.JoinWaitlistRequest) (*model.WaitlistEntry, error) {
	// Join is reachable without an account, so the limit keys on email.
	decision, err := s.limiter.CheckLimit(ctx, req.Email, ratelimit.BucketJoinWaitlist)
	if err != nil {
		log.Warn().Err(err).Msg("rate limit check failed")
	} else if !decision.Allowed {
		return nil, apperrors.TooManyRequests(decision.RetryAfter)
	}

	if _, err := s.getProvider(ctx, providerID); err != nil {
		return nil, err
	}

	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin waitlist transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.entries.LockProviderTx(ctx, tx, providerID); err != nil {
		return nil, err
	}

	exists, err := s.entries.ActiveEmailExistsTx(ctx, tx, providerID, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Validation("this email is already on the waitlist", nil)
	}

	maxPosition, err := s.entries.MaxActivePositionTx(ctx, tx, providerID)
	if err != nil {
		return nil, err
	}

	entry := &model.WaitlistEntry{
		ProviderID:  providerID,
		ClientName:  req.ClientName,
		Email:       req.Email,
		Phone:       req.Phone,
		DesiredDate: req.DesiredDate,
		Position:    maxPosition + 1,
		Notes:       req.Notes,
	}

	if err := s.entries.InsertTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit waitlist join: %w", err)
	}

	s.metrics.WaitlistJoins.Inc()
	return entry, nil
}

// Leave removes the caller's own entry. The actor must match the entry's
// email.
func (s *Service) Leave(ctx context.Context, actor model.Actor, entryID uuid.UUID) error {
	return s.remove(ctx, entryID, func(entry *model.WaitlistEntry) error {
		if actor.Role == model.RoleAdmin || entry.Email == actor.Email {
			return nil
		}
		return apperrors.Forbidden("not allowed to remove this waitlist entry")
	})
}

// Remove deletes an entry on behalf of the provider owner.
func (s *Service) Remove(ctx context.Context, actor model.Actor, entryID uuid.UUID) error {
	return s.remove(ctx, entryID, func(entry *model.WaitlistEntry) error {
		return s.requireOwner(ctx, actor, entry.ProviderID)
	})
}

func (s *Service) remove(ctx context.Context, entryID uuid.UUID, authorize func(*model.WaitlistEntry) error) error {
	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin waitlist transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return err
	}

	if err := s.entries.LockProviderTx(ctx, tx, entry.ProviderID); err != nil {
		return err
	}

	// Re-read under the lock: a concurrent promote may have renumbered.
	entry, err = s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return err
	}

	if err := authorize(entry); err != nil {
		return err
	}

	if err := s.entries.DeleteTx(ctx, tx, entryID); err != nil {
		return err
	}

	if entry.Active() {
		if err := s.entries.ShiftPositionsAfterTx(ctx, tx, entry.ProviderID, entry.Position); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit waitlist removal: %w", err)
	}
	return nil
}

// Reorder moves an entry to a new position, shifting everything strictly
// between the old and new positions by one. Equal positions are a no-op.
func (s *Service) Reorder(ctx context.Context, actor model.Actor, entryID uuid.UUID, newPosition int) (*model.WaitlistEntry, error) {
	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin waitlist transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwner(ctx, actor, entry.ProviderID); err != nil {
		return nil, err
	}

	if err := s.entries.LockProviderTx(ctx, tx, entry.ProviderID); err != nil {
		return nil, err
	}

	entry, err = s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}

	if !entry.Active() {
		return nil, apperrors.Validation("cannot reorder a notified entry", nil)
	}

	maxPosition, err := s.entries.MaxActivePositionTx(ctx, tx, entry.ProviderID)
	if err != nil {
		return nil, err
	}
	if newPosition < 1 || newPosition > maxPosition {
		return nil, apperrors.Validation(fmt.Sprintf("position must be between 1 and %d", maxPosition), nil)
	}

	if newPosition == entry.Position {
		return entry, nil
	}

	if newPosition < entry.Position {
		err = s.entries.ShiftRangeTx(ctx, tx, entry.ProviderID, newPosition, entry.Position-1, 1)
	} else {
		err = s.entries.ShiftRangeTx(ctx, tx, entry.ProviderID, entry.Position+1, newPosition, -1)
	}
	if err != nil {
		return nil, err
	}

	if err := s.entries.SetPositionTx(ctx, tx, entryID, newPosition); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit waitlist reorder: %w", err)
	}

	entry.Position = newPosition
	return entry, nil
}

// Promote marks an entry notified (irreversibly), renumbers the remaining
// active entries, and fires the promotion notification. The notification
// is fire-and-forget relative to the renumbering transaction: its failure
// is reported in the result, not rolled back.
func (s *Service) Promote(ctx context.Context, actor model.Actor, entryID uuid.UUID) (*PromoteResult, error) {
	tx, err := s.entries.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin waitlist transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}

	if err := s.requireOwner(ctx, actor, entry.ProviderID); err != nil {
		return nil, err
	}

	if err := s.entries.LockProviderTx(ctx, tx, entry.ProviderID); err != nil {
		return nil, err
	}

	entry, err = s.getEntryTx(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}

	if !entry.Active() {
		return nil, apperrors.Validation("entry has already been notified", nil)
	}

	notifiedAt := s.now()
	if err := s.entries.MarkNotifiedTx(ctx, tx, entryID, notifiedAt); err != nil {
		return nil, err
	}

	if err := s.entries.ShiftPositionsAfterTx(ctx, tx, entry.ProviderID, entry.Position); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit waitlist promotion: %w", err)
	}

	entry.NotifiedAt = &notifiedAt
	s.metrics.WaitlistPromotions.Inc()

	provider, err := s.getProvider(ctx, entry.ProviderID)
	providerName := ""
	if err == nil {
		providerName = provider.Name
	}

	deliveryErr := s.notifSvc.Notify(ctx,
		model.Recipient{Email: entry.Email, Name: entry.ClientName},
		model.TemplateWaitlistPromotion,
		map[string]interface{}{"provider_name": providerName},
	)

	return &PromoteResult{Entry: entry, DeliveryError: deliveryErr}, nil
}

// ListActive returns the provider's active entries ordered by position.
func (s *Service) ListActive(ctx context.Context, actor model.Actor, providerID uuid.UUID) ([]*model.WaitlistEntry, error) {
	if err := s.requireOwner(ctx, actor, providerID); err != nil {
		return nil, err
	}

	entries, err := s.entries.ListActive(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist entries: %w", err)
	}
	return entries, nil
}

func (s *Service) getEntryTx(ctx context.Context, tx repository.Tx, entryID uuid.UUID) (*model.WaitlistEntry, error) {
	entry, err := s.entries.GetTx(ctx, tx, entryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("waitlist entry", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return entry, nil
}

func (s *Service) getProvider(ctx context.Context, providerID uuid.UUID) (*model.Provider, error) {
	provider, err := s.providers.Get(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("provider", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return provider, nil
}

func (s *Service) requireOwner(ctx context.Context, actor model.Actor, providerID uuid.UUID) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}
	if actor.Role != model.RoleProvider {
		return apperrors.Forbidden("provider role required")
	}
	provider, err := s.getProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if provider.OwnerID != actor.ID {
		return apperrors.Forbidden("not the owner of this provider")
	}
	return nil
}
