package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carebridge/booking-api/internal/config"
	"github.com/carebridge/booking-api/internal/email"
	"github.com/carebridge/booking-api/internal/handler"
	availabilityHandler "github.com/carebridge/booking-api/internal/handler/availability"
	bookingHandler "github.com/carebridge/booking-api/internal/handler/booking"
	providerHandler "github.com/carebridge/booking-api/internal/handler/provider"
	waitlistHandler "github.com/carebridge/booking-api/internal/handler/waitlist"
	"github.com/carebridge/booking-api/internal/middleware"
	"github.com/carebridge/booking-api/internal/repository/postgres"
	"github.com/carebridge/booking-api/internal/router"
	availabilityService "github.com/carebridge/booking-api/internal/service/availability"
	bookingService "github.com/carebridge/booking-api/internal/service/booking"
	"github.com/carebridge/booking-api/internal/service/notification"
	providerService "github.com/carebridge/booking-api/internal/service/provider"
	waitlistService "github.com/carebridge/booking-api/internal/service/waitlist"
	"github.com/carebridge/booking-api/pkg/logger"
	redisBroker "github.com/carebridge/booking-api/pkg/messaging/redis"
	"github.com/carebridge/booking-api/pkg/metrics"
	"github.com/carebridge/booking-api/pkg/ratelimit"
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

	providerRepo := postgres.NewProviderRepository(db)
	subjectRepo := postgres.NewSubjectRepository(db)
	reservationRepo := postgres.NewReservationRepository(db)
	waitlistRepo := postgres.NewWaitlistRepository(db)

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL(),
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	limiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL(), ratelimit.DefaultBuckets())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rate limiter")
	}

	m := metrics.NewMetrics("booking")

	emailSvc := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	notifSvc := notification.NewService(emailSvc, broker, m)

	availabilitySvc := availabilityService.NewService(providerRepo, reservationRepo)
	bookingSvc := bookingService.NewService(reservationRepo, providerRepo, subjectRepo, limiter, notifSvc, m).
		WithInvalidator(availabilitySvc.Invalidate)
	waitlistSvc := waitlistService.NewService(waitlistRepo, providerRepo, limiter, notifSvc, m)
	providerSvc := providerService.NewService(providerRepo, availabilitySvc.Invalidate)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	h := handler.NewHandler(db)
	r := router.NewRouter(
		authMiddleware,
		availabilityHandler.NewHandler(availabilitySvc),
		providerHandler.NewHandler(providerSvc),
		bookingHandler.NewHandler(bookingSvc),
		waitlistHandler.NewHandler(waitlistSvc),
		h,
		router.Config{
			RateLimit:  cfg.RateLimit.RequestsPerSecond,
			RateBurst:  cfg.RateLimit.Burst,
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting booking API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
