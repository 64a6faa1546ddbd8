package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/condo-scheduler/internal/api/http"
	"github.com/spec-kit/condo-scheduler/internal/api/http/handlers"
	"github.com/spec-kit/condo-scheduler/internal/auth"
	"github.com/spec-kit/condo-scheduler/internal/config"
	"github.com/spec-kit/condo-scheduler/internal/events"
	"github.com/spec-kit/condo-scheduler/internal/followup"
	"github.com/spec-kit/condo-scheduler/internal/messaging"
	"github.com/spec-kit/condo-scheduler/internal/observability"
	"github.com/spec-kit/condo-scheduler/internal/persistence"
	"github.com/spec-kit/condo-scheduler/internal/repository"
	"github.com/spec-kit/condo-scheduler/internal/scheduler"
	"github.com/spec-kit/condo-scheduler/internal/service"
	"github.com/spec-kit/condo-scheduler/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	catalog := scheduler.DefaultCatalog()
	if cfg.Scheduler.BlocksJSON != "" {
		catalog, err = scheduler.ParseCatalog(cfg.Scheduler.BlocksJSON)
		if err != nil {
			logger.Fatal("invalid block catalog", zap.Error(err))
		}
	}

	pool := pg.PoolHandle()
	caseRepo := repository.NewCaseRepository(pool)
	apptRepo := repository.NewAppointmentRepository(pool)
	techRepo := repository.NewTechnicianRepository(pool)
	followUpRepo := repository.NewFollowUpRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	sender := messaging.NewSenderFromConfig(cfg.Messaging, logger)

	slotScheduler := scheduler.NewSlotScheduler(scheduler.Dependencies{
		AppointmentRepo: apptRepo,
		TechnicianRepo:  techRepo,
		Catalog:         catalog,
		Locks:           scheduler.NewRedisSlotLocker(redis.Client, cfg.Scheduler.SlotLockTTL()),
		Logger:          logger,
		Metrics:         metrics,
	})

	engine := followup.NewEngine(followup.EngineDependencies{
		CaseRepo:     caseRepo,
		FollowUpRepo: followUpRepo,
		Rescheduler:  slotScheduler,
		Sender:       sender,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Metrics:      metrics,
	}).WithMaxAttempts(cfg.FollowUp.MaxAttempts).WithRetryInterval(cfg.FollowUp.RetryInterval())

	caseLocks := worker.NewCaseLocks()
	caseService := service.NewCaseService(service.CaseDependencies{
		CaseRepo:        caseRepo,
		AppointmentRepo: apptRepo,
		FollowUpRepo:    followUpRepo,
		Scheduler:       slotScheduler,
		Engine:          engine,
		Locks:           caseLocks,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Messaging)
	notificationService.RegisterHandlers()

	clock := worker.NewScheduleClock(engine, caseRepo, sender, caseLocks, logger).
		WithInterval(cfg.FollowUp.TickInterval()).
		WithInitialDelay(cfg.FollowUp.InitialDelay())
	go clock.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Cases:          handlers.NewCasesHandler(caseService),
		Replies:        handlers.NewRepliesHandler(caseService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
