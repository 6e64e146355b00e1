package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/learnstack/backend/api/handler"
	"github.com/learnstack/backend/internal/activity"
	"github.com/learnstack/backend/internal/cache"
	"github.com/learnstack/backend/internal/config"
	"github.com/learnstack/backend/internal/device"
	"github.com/learnstack/backend/internal/engine"
	"github.com/learnstack/backend/internal/infrastructure/buffer"
	"github.com/learnstack/backend/internal/infrastructure/monitor"
	pgInfra "github.com/learnstack/backend/internal/infrastructure/postgres"
	redisInfra "github.com/learnstack/backend/internal/infrastructure/redis"
	"github.com/learnstack/backend/internal/middleware"
	"github.com/learnstack/backend/internal/router"
	"github.com/learnstack/backend/internal/services"
	"github.com/learnstack/backend/internal/services/lifecycle"
	"github.com/learnstack/backend/internal/snapshot"
	"github.com/learnstack/backend/pkg/httpcontext"
	"github.com/learnstack/backend/pkg/logger"
	"github.com/learnstack/backend/repository/postgres"
	redisRepo "github.com/learnstack/backend/repository/redis"
	authUC "github.com/learnstack/backend/usecase/auth"
	learningUC "github.com/learnstack/backend/usecase/learning"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	actionBuffer, err := buffer.Open(cfg.Buffer.Path, "actions")
	if err != nil {
		zapLogger.Fatal("failed to open action buffer", zap.Error(err))
	}
	manager.Register("action_buffer", func(ctx context.Context) error {
		return actionBuffer.Close()
	})

	mon := monitor.New(pool, redisClient, actionBuffer, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	cohortRepo := postgres.NewCohortRepository(pool)
	mappingRepo := postgres.NewMappingRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	actionRepo := postgres.NewActionRepository(pool)
	registryRepo := redisRepo.NewRegistryRepository(redisClient, cfg.Session.MaxDuration())

	cacheStore := cache.NewRedisStore(redisClient, cfg.AppName+":")

	snapshots := snapshot.NewLoader(userRepo, cohortRepo, mappingRepo, cacheStore, snapshot.TTLs{
		User:    cfg.CacheTTL.User,
		Cohort:  cfg.CacheTTL.Cohort,
		Mapping: cfg.CacheTTL.Mapping,
	}, zapLogger)

	activityMonitor := activity.NewMonitor(sessionRepo, actionRepo, cacheStore, activity.Config{
		InactivityTimeout: cfg.Session.Timeout(),
		WarningLead:       cfg.Session.WarningLead(),
		MaxDuration:       cfg.Session.MaxDuration(),
		VerdictTTL:        cfg.CacheTTL.Activity,
	}, zapLogger)

	deviceService := device.NewService(cfg.Session.SingleDeviceLogin, registryRepo, sessionRepo, zapLogger)

	validationEngine := engine.New(
		snapshots,
		activityMonitor,
		deviceService,
		sessionRepo,
		cacheStore,
		cfg.CacheTTL.Verdict,
		zapLogger,
	)

	actionProcessor := services.NewActionProcessor(
		actionBuffer,
		mon,
		actionRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
		},
	)
	actionProcessor.Start()
	manager.Register("action_processor", func(ctx context.Context) error {
		actionProcessor.Stop(ctx)
		return nil
	})

	actionRecorder := services.NewActionRecorder(actionProcessor)

	authUseCase := authUC.New(userRepo, cohortRepo, mappingRepo, sessionRepo, deviceService, validationEngine, zapLogger)
	learningUseCase := learningUC.New(actionRecorder, activityMonitor, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Learning: apiHandler.NewLearningHandler(learningUseCase, ctxAdapter, zapLogger),
		Admin:    apiHandler.NewAdminHandler(userRepo, mappingRepo, sessionRepo, validationEngine, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	adminGuard := middleware.AdminJWT(cfg.AdminJWT.Secret, zapLogger)
	r := router.New(handlers, adminGuard)

	gatekeeper := middleware.NewGatekeeper(validationEngine, cfg.Gatekeeper, zapLogger)

	server := &fasthttp.Server{
		Handler:      gatekeeper.Wrap(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
