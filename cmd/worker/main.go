package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/booking-api/internal/config"
	"github.com/carebridge/booking-api/internal/email"
	"github.com/carebridge/booking-api/internal/repository/postgres"
	"github.com/carebridge/booking-api/internal/service/notification"
	"github.com/carebridge/booking-api/internal/worker"
	"github.com/carebridge/booking-api/pkg/logger"
	redisBroker "github.com/carebridge/booking-api/pkg/messaging/redis"
	"github.com/carebridge/booking-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL(),
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     5,
		MinIdleConns: 1,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("booking_worker")

	emailSvc := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notifSvc := notification.NewService(emailSvc, broker, m)

	reminderWorker := worker.NewReminderWorker(
		postgres.NewReservationRepository(db),
		postgres.NewProviderRepository(db),
		notifSvc,
		m,
		time.Duration(cfg.Worker.ReminderLeadHours)*time.Hour,
		time.Duration(cfg.Worker.ReminderIntervalMinutes)*time.Minute,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go reminderWorker.Start(ctx)
	log.Info().Msg("reminder worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker...")
	cancel()
	log.Info().Msg("worker exited properly")
}
