package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/eventhub-api/api/swagger"
	"github.com/noah-isme/eventhub-api/internal/handler"
	"github.com/noah-isme/eventhub-api/internal/middleware"
	"github.com/noah-isme/eventhub-api/internal/notification"
	"github.com/noah-isme/eventhub-api/internal/repository"
	"github.com/noah-isme/eventhub-api/internal/service"
	"github.com/noah-isme/eventhub-api/pkg/cache"
	"github.com/noah-isme/eventhub-api/pkg/config"
	"github.com/noah-isme/eventhub-api/pkg/database"
	"github.com/noah-isme/eventhub-api/pkg/jobs"
	"github.com/noah-isme/eventhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/eventhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/eventhub-api/pkg/middleware/requestid"
)

// @title EventHub API
// @version 1.0.0
// @description Event lifecycle, voting resolution and XP awards
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.Events.Timezone)
	if err != nil {
		return fmt.Errorf("load EVENT_TIMEZONE %q: %w", cfg.Events.Timezone, err)
	}

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var app *firebase.App
	if cfg.Store.Driver == config.StoreFirestore || cfg.Auth.Provider == config.AuthFirebase || cfg.Notifications.Driver == config.NotifyFCM {
		if app, err = database.NewFirebaseApp(ctx, cfg.Firebase); err != nil {
			return err
		}
	}

	store, closeStore, err := openStore(ctx, cfg, app, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []service.EventServiceOption{
		service.WithEventMetrics(metricsSvc),
		service.WithEventTimezone(loc),
		service.WithXPConfig(service.XPConfig{
			Organizer:     cfg.XP.Organizer,
			Participation: cfg.XP.Participation,
			BestPerformer: cfg.XP.BestPerformer,
		}),
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("event cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
			cacheRepo := repository.NewCacheRepository(client, logr)
			opts = append(opts, service.WithEventCache(service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)))
		}
	}

	notifier, err := buildNotifier(ctx, cfg, app, metricsSvc, logr)
	if err != nil {
		return err
	}
	if notifier != nil {
		notifier.Start(ctx)
		defer notifier.Stop()
		opts = append(opts, service.WithEventNotifier(notifier))
	}

	verifier, err := buildVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	events := service.NewEventService(store, validator.New(), logr, opts...)
	dispatcher := service.NewOperationDispatcher(events, metricsSvc, logr)
	exporter := service.NewResultsExportService(events, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	ops := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes := handler.Routes{
		Events:        handler.NewEventHandler(events),
		Participation: handler.NewParticipationHandler(events),
		Voting:        handler.NewVotingHandler(events),
		Results:       handler.NewResultsHandler(events, exporter, dispatcher),
		Verifier:      verifier,
	}
	if cfg.RateLimit.Enabled {
		routes.BallotLimit = middleware.RateLimit(cfg.RateLimit.Period, cfg.RateLimit.Limit)
	}
	routes.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, app *firebase.App, checks map[string]handler.ReadinessCheck) (service.EventStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
		return repository.NewPostgresEventRepository(db), closer(db), nil
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("open firestore: %w", err)
		}
		return repository.NewFirestoreEventRepository(client), closer(client), nil
	default:
		return nil, nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
}

func closer[T interface{ Close() error }](c T) func() {
	return func() { _ = c.Close() }
}

func buildNotifier(ctx context.Context, cfg *config.Config, app *firebase.App, metrics *service.MetricsService, logr *zap.Logger) (*notification.Notifier, error) {
	var dispatcher notification.Dispatcher
	switch cfg.Notifications.Driver {
	case config.NotifyNone, "":
		return nil, nil
	case config.NotifyHTTP:
		if cfg.Notifications.WebhookURL == "" {
			return nil, errors.New("NOTIFY_WEBHOOK_URL is required for the http driver")
		}
		dispatcher = notification.NewWebhookDispatcher(cfg.Notifications.WebhookURL, cfg.Notifications.Timeout)
	case config.NotifyFCM:
		client, err := app.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("init fcm client: %w", err)
		}
		dispatcher = notification.NewFCMDispatcher(client)
	case config.NotifyKafka:
		dispatcher = notification.NewKafkaDispatcher(cfg.Notifications.KafkaBrokers, cfg.Notifications.KafkaTopic)
	default:
		return nil, fmt.Errorf("unsupported NOTIFY_DRIVER %q", cfg.Notifications.Driver)
	}
	return notification.NewNotifier(dispatcher, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
	}), nil
}

func buildVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (middleware.TokenVerifier, error) {
	switch cfg.Auth.Provider {
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("init firebase auth: %w", err)
		}
		return middleware.NewFirebaseVerifier(client), nil
	case config.AuthHMAC:
		if cfg.Auth.HMACSecret == "" {
			return nil, errors.New("JWT_SECRET is required for the hmac provider")
		}
		return middleware.NewHMACVerifier(cfg.Auth.HMACSecret, cfg.Auth.Issuer), nil
	default:
		return nil, fmt.Errorf("unsupported AUTH_PROVIDER %q", cfg.Auth.Provider)
	}
}
