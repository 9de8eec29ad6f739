package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/booking-api/internal/model"
	"github.com/carebridge/booking-api/internal/repository"
	"github.com/carebridge/booking-api/internal/service/notification"
	"github.com/carebridge/booking-api/pkg/metrics"
)

// ReminderWorker periodically dispatches reminders for confirmed
// reservations entering the lead window. reminder_sent_at makes each
// dispatch idempotent across restarts and multiple workers.
type ReminderWorker struct {
	reservations repository.ReservationRepository
	providers    repository.ProviderRepository
	notifSvc     notification.Service
	metrics      *metrics.Metrics
	lead         time.Duration
	interval     time.Duration
}

func NewReminderWorker(
	reservations repository.ReservationRepository,
	providers repository.ProviderRepository,
	notifSvc notification.Service,
	m *metrics.Metrics,
	lead, interval time.Duration,
) *ReminderWorker {
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReminderWorker{
		reservations: reservations,
		providers:    providers,
		notifSvc:     notifSvc,
		metrics:      m,
		lead:         lead,
		interval:     interval,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.dispatch(ctx); err != nil {
				log.Error().Err(err).Msg("reminder dispatch failed")
			}
		}
	}
}

func (w *ReminderWorker) dispatch(ctx context.Context) error {
	now := time.Now()
	due, err := w.reservations.ListDueReminders(ctx, now, now.Add(w.lead))
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}

	for _, reservation := range due {
		if err := w.remind(ctx, reservation); err != nil {
			log.Warn().
				Err(err).
				Str("reservation_id", reservation.ID.String()).
				Msg("failed to send reminder")
			continue
		}
		w.metrics.RemindersSent.Inc()
	}

	if len(due) > 0 {
		log.Info().Int("count", len(due)).Msg("reminder batch dispatched")
	}
	return nil
}

func (w *ReminderWorker) remind(ctx context.Context, reservation *model.Reservation) error {
	providerName := ""
	if provider, err := w.providers.Get(ctx, reservation.ProviderID); err == nil {
		providerName = provider.Name
	}

	payload := map[string]interface{}{
		"reservation_id": reservation.ID,
		"provider_name":  providerName,
	}
	if reservation.ScheduledAt != nil {
		payload["scheduled_at"] = reservation.ScheduledAt.Format(time.RFC3339)
	}

	err := w.notifSvc.Notify(ctx, model.Recipient{UserID: reservation.ClientID},
		model.TemplateBookingReminder, payload)
	if err != nil {
		return err
	}

	// Mark only after a successful send so a failed reminder retries on
	// the next tick.
	return w.reservations.MarkReminderSent(ctx, reservation.ID, time.Now())
}
