package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tutoria-backend/internal/config"
	"github.com/stemsi/tutoria-backend/internal/database"
	"github.com/stemsi/tutoria-backend/internal/handler"
	"github.com/stemsi/tutoria-backend/internal/logger"
	"github.com/stemsi/tutoria-backend/internal/middleware"
	"github.com/stemsi/tutoria-backend/internal/notify"
	"github.com/stemsi/tutoria-backend/internal/repository"
	"github.com/stemsi/tutoria-backend/internal/router"
	"github.com/stemsi/tutoria-backend/internal/seed"
	"github.com/stemsi/tutoria-backend/internal/service"
	"github.com/stemsi/tutoria-backend/internal/validator"
	"github.com/stemsi/tutoria-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "server")
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Tutoria Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Store ────────────────────────────────────────────────────
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		res, err := seed.Demo(ctx, mem, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed memory store")
		}
		log.Warn().
			Int("classes", res.ClassesCreated).
			Str("guardian_id", seed.GuardianID.String()).
			Msg("Using in-memory store with demo data; nothing is persisted")
		store = mem
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		store = repository.NewPostgresStore(pool)
	default:
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("Unknown STORE_DRIVER")
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Notification Broker ───────────────────────────────────────────
	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		log.Info().Str("exchange", cfg.NotifyExchange).Msg("AMQP publisher ready")
		publisher = amqpPublisher
	} else {
		log.Warn().Msg("AMQP_URL not set, class notifications will only be logged")
		publisher = notify.NewLogPublisher(log)
	}
	defer publisher.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	rules := service.NewClassRuleValidator(nil)
	authService := service.NewAuthService(cfg)
	availabilityService := service.NewAvailabilityService(store, rdb, cfg.AvailabilityTTL, log)
	reservationService := service.NewReservationService(store, rules, availabilityService, log)
	lifecycleService := service.NewClassLifecycleService(store, rules, notify.NewQueueSender(rdb), availabilityService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Reservation: handler.NewReservationHandler(reservationService),
		Class:       handler.NewClassHandler(lifecycleService, availabilityService),
		SeatStream:  handler.NewSeatStreamHandler(availabilityService, log, cfg.AllowedOrigins),
	}
	reserveLimiter := middleware.NewReserveRateLimiter(rdb, cfg.ReserveRateLimit, cfg.ReserveRateWindow, log)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	notificationWorker := worker.NewNotificationWorker(rdb, publisher, log)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		notificationWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, reserveLimiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the notification worker; queued jobs stay in Redis.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(2 * time.Second):
		log.Warn().Msg("Notification worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
