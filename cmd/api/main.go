package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quest-api/internal/clock"
	"github.com/noah-isme/gema-quest-api/internal/config"
	"github.com/noah-isme/gema-quest-api/internal/database"
	"github.com/noah-isme/gema-quest-api/internal/events"
	"github.com/noah-isme/gema-quest-api/internal/handler"
	"github.com/noah-isme/gema-quest-api/internal/middleware"
	"github.com/noah-isme/gema-quest-api/internal/models"
	"github.com/noah-isme/gema-quest-api/internal/repository"
	"github.com/noah-isme/gema-quest-api/internal/router"
	"github.com/noah-isme/gema-quest-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	calendar, err := clock.Load(cfg.ReferenceTimezone)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load reference timezone")
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Challenge{},
		&models.Submission{},
		&models.Transaction{},
		&models.ActivityLog{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	bus := events.NewBus(redisClient, natsConn, cfg.EventsChannel, logger)
	bus.Subscribe(func(event events.Event) {
		logger.Debug().Str("event_type", event.Type).Str("source", event.Source).Msg("event received from peer")
	})
	bus.Start(ctx)

	validate := validator.New(validator.WithRequiredStructEnabled())
	store := repository.NewStore(db)
	transactor := repository.NewTransactor(db)

	activityService := service.NewActivityService(store.Activities, validate, logger)
	profileService := service.NewProfileService(store.Profiles, validate, activityService, logger)
	challengeService := service.NewChallengeService(store.Challenges, validate, calendar, activityService, logger)
	ledgerService := service.NewLedgerService(store, transactor, validate, bus, activityService, logger)
	leaderboardService := service.NewLeaderboardService(store.Profiles, redisClient, cfg.LeaderboardCacheTTL, cfg.LeaderboardSize, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Store:       store,
		Transactor:  transactor,
		Ledger:      ledgerService,
		Leaderboard: leaderboardService,
		Events:      bus,
		Activity:    activityService,
		Validator:   validate,
		Calendar:    calendar,
	}, logger)

	healthChecks := map[string]handler.HealthCheckFunc{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ProfileHandler:     handler.NewProfileHandler(profileService, logger),
		ChallengeHandler:   handler.NewChallengeHandler(challengeService, logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissionService, logger),
		LedgerHandler:      handler.NewLedgerHandler(ledgerService, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboardService, logger),
		ActivityHandler:    handler.NewActivityHandler(activityService, logger),
		HealthChecks:       healthChecks,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		ProfileMiddleware:  middleware.ResolveProfile(profileService),
		SubmitLimiter:      middleware.RateLimit("submissions", cfg.SubmitRateLimit, cfg.RateLimitWindow),
		ReviewLimiter:      middleware.RateLimit("reviews", cfg.ReviewRateLimit, cfg.RateLimitWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, cfg.ShutdownTimeout, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, timeout time.Duration, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
