package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/booking-api/internal/email"
	"github.com/carebridge/booking-api/internal/model"
	apperrors "github.com/carebridge/booking-api/pkg/errors"
	"github.com/carebridge/booking-api/pkg/messaging"
	"github.com/carebridge/booking-api/pkg/metrics"
)

const inAppChannel = "notifications"

// Service is the notification collaborator: fire-and-forget relative to
// the state transition that triggered it. A delivery failure is reported
// as DeliveryFailure so callers can surface it without rolling anything
// back.
type Service interface {
	Notify(ctx context.Context, recipient model.Recipient, kind model.TemplateKind, payload map[string]interface{}) error
}

type service struct {
	emailSvc email.Service
	broker   messaging.Broker
	metrics  *metrics.Metrics
}

func NewService(emailSvc email.Service, broker messaging.Broker, m *metrics.Metrics) Service {
	return &service{
		emailSvc: emailSvc,
		broker:   broker,
		metrics:  m,
	}
}

func (s *service) Notify(ctx context.Context, recipient model.Recipient, kind model.TemplateKind, payload map[string]interface{}) error {
	var firstErr error

	if recipient.Email != "" {
		subject, body := render(kind, recipient, payload)
		if err := s.emailSvc.SendCustom(ctx, recipient.Email, subject, body); err != nil {
			firstErr = err
		}
	}

	if recipient.UserID != uuid.Nil {
		event := &model.NotificationEvent{
			ID:        uuid.New(),
			UserID:    recipient.UserID,
			Kind:      kind,
			Payload:   payload,
			CreatedAt: time.Now(),
		}
		if err := s.broker.Publish(ctx, inAppChannel, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		s.metrics.NotificationsFailed.WithLabelValues(string(kind)).Inc()
		log.Warn().Err(firstErr).Str("kind", string(kind)).Msg("notification delivery failed")
		return apperrors.DeliveryFailure(firstErr)
	}

	s.metrics.NotificationsSent.WithLabelValues(string(kind)).Inc()
	return nil
}

func render(kind model.TemplateKind, recipient model.Recipient, payload map[string]interface{}) (string, string) {
	name := recipient.Name
	if name == "" {
		name = "there"
	}

	switch kind {
	case model.TemplateBookingConfirmed:
		return "Your booking is confirmed",
			fmt.Sprintf("<p>Hi %s,</p><p>Your booking at %v on %v has been confirmed.</p>", name, payload["provider_name"], payload["scheduled_at"])
	case model.TemplateBookingCancelled:
		return "Your booking was cancelled",
			fmt.Sprintf("<p>Hi %s,</p><p>Your booking at %v on %v has been cancelled.</p>", name, payload["provider_name"], payload["scheduled_at"])
	case model.TemplateBookingReminder:
		return "Upcoming booking reminder",
			fmt.Sprintf("<p>Hi %s,</p><p>Reminder: you have a booking at %v on %v.</p>", name, payload["provider_name"], payload["scheduled_at"])
	case model.TemplateWaitlistPromotion:
		return "A spot has opened up",
			fmt.Sprintf("<p>Hi %s,</p><p>Good news: a spot has opened up at %v. Please contact the provider to claim it.</p>", name, payload["provider_name"])
	}
	return "Notification", fmt.Sprintf("<p>Hi %s,</p>", name)
}
