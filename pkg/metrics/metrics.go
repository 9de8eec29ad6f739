package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking lifecycle
	BookingsCreated   *prometheus.CounterVec
	SeriesCreated     prometheus.Counter
	ConflictsRejected prometheus.Counter
	BookingsCancelled prometheus.Counter
	Reschedules       prometheus.Counter

	// Waitlist
	WaitlistJoins      prometheus.Counter
	WaitlistPromotions prometheus.Counter

	// Notifications
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	RemindersSent       prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		BookingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Total number of reservations created",
		}, []string{"kind"}),
		SeriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_series_created_total",
			Help:      "Total number of recurring series created",
		}),
		ConflictsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_rejected_total",
			Help:      "Total number of bookings rejected by the conflict guard",
		}),
		BookingsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Total number of reservations cancelled",
		}),
		Reschedules: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_reschedules_total",
			Help:      "Total number of reservations rescheduled",
		}),
		WaitlistJoins: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_joins_total",
			Help:      "Total number of waitlist entries created",
		}),
		WaitlistPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waitlist_promotions_total",
			Help:      "Total number of waitlist entries promoted",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered",
		}, []string{"kind"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of notification delivery failures",
		}, []string{"kind"}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of reminder notifications dispatched",
		}),
	}
}
