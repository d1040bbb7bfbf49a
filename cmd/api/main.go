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

	"github.com/jwalitptl/obex-alerts/config"
	"github.com/jwalitptl/obex-alerts/internal/email"
	alertHandler "github.com/jwalitptl/obex-alerts/internal/handler/alert"
	cameraHandler "github.com/jwalitptl/obex-alerts/internal/handler/camera"
	"github.com/jwalitptl/obex-alerts/internal/handler/health"
	wsHandler "github.com/jwalitptl/obex-alerts/internal/handler/websocket"
	"github.com/jwalitptl/obex-alerts/internal/ingest"
	"github.com/jwalitptl/obex-alerts/internal/middleware"
	"github.com/jwalitptl/obex-alerts/internal/realtime"
	"github.com/jwalitptl/obex-alerts/internal/repository/cache"
	"github.com/jwalitptl/obex-alerts/internal/repository/postgres"
	"github.com/jwalitptl/obex-alerts/internal/router"
	alertService "github.com/jwalitptl/obex-alerts/internal/service/alert"
	cameraService "github.com/jwalitptl/obex-alerts/internal/service/camera"
	"github.com/jwalitptl/obex-alerts/internal/service/broadcast"
	"github.com/jwalitptl/obex-alerts/internal/service/notification"
	"github.com/jwalitptl/obex-alerts/internal/sms"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
	"github.com/jwalitptl/obex-alerts/pkg/messaging"
	"github.com/jwalitptl/obex-alerts/pkg/messaging/redis"
	"github.com/jwalitptl/obex-alerts/pkg/metrics"
	"github.com/jwalitptl/obex-alerts/pkg/validator"
	"github.com/jwalitptl/obex-alerts/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Logging.JSON,
	})
	// middleware logs through the global logger
	log.Logger = *appLogger.Zerolog()

	appMetrics := metrics.NewMetrics("obex", nil)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	base := postgres.NewBaseRepository(db, appMetrics)
	alertRepo := postgres.NewAlertRepository(base)
	cameraRepo := postgres.NewCameraRepository(base)
	userRepo := cache.NewUserRepository(postgres.NewUserRepository(base), cfg.Notification.ContactCacheTTL)

	// Real-time fanout
	registry := realtime.NewRegistry(appLogger, appMetrics)
	broadcaster := broadcast.NewService(registry, appLogger, appMetrics)

	// Offline notification
	var smsSender sms.Sender
	if cfg.SMS.Enabled {
		smsSender = sms.NewTermiiClient(sms.Config{
			BaseURL:         cfg.SMS.BaseURL,
			APIKey:          cfg.SMS.APIKey,
			SenderID:        cfg.SMS.SenderID,
			CountryCode:     cfg.SMS.CountryCode,
			Timeout:         cfg.SMS.Timeout,
			BreakerFailures: cfg.SMS.BreakerFailures,
			BreakerTimeout:  cfg.SMS.BreakerTimeout,
		}, appLogger)
	}

	var mailer email.Service
	if cfg.Email.Enabled {
		mailer, err = email.NewService(cfg.Email, appLogger)
		if err != nil {
			appLogger.Fatal(err, "failed to configure email")
		}
	}

	notifier := notification.NewService(userRepo, smsSender, mailer, notification.Config{
		Subject: cfg.Email.Subject,
		Timeout: cfg.Notification.Timeout,
	}, appLogger, appMetrics)

	pool := worker.NewPool(cfg.Notification.ToPoolConfig(), appLogger, appMetrics)

	// Alert pipeline
	alertSvc := alertService.NewService(alertRepo, broadcaster, notifier, pool, validator.New(), appLogger, appMetrics)
	cameraSvc := cameraService.NewService(cameraRepo, validator.New(), appLogger)

	// Initialize handlers
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer)

	var limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   cfg.RateLimit.RequestsPerSecond,
		Burst: cfg.RateLimit.Burst,
	}).RateLimit()
	if !cfg.RateLimit.Enabled {
		limiter = nil
	}

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}

	r := router.NewRouter(
		health.NewHandler(&base, nil),
		wsHandler.NewHandler(registry, wsHandler.Config{
			ConnectionURL:  cfg.Websocket.ConnectionURL,
			AllowedOrigins: cfg.Websocket.AllowedOrigins,
		}, appLogger),
		router.RouterConfig{
			CORSConfig:    corsConfig,
			MetricsPrefix: "obex_http",
			Debug:         cfg.Logging.Level == "debug",
		},
		alertHandler.NewHandler(alertSvc, authMiddleware, limiter),
		cameraHandler.NewHandler(cameraSvc, authMiddleware),
	)
	r.Setup()

	// Message bus ingestion
	ctx, stopSubscribers := context.WithCancel(context.Background())
	defer stopSubscribers()

	var broker messaging.Broker
	subscribers := buildSubscribers(cfg, alertSvc, appLogger, &broker)
	for _, s := range subscribers {
		if err := s.Start(ctx); err != nil {
			appLogger.Fatal(err, "failed to start subscriber", "subscriber", s.Name())
		}
	}

	// Create server
	// No WriteTimeout: it would cut long-lived websocket connections.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	// Start server
	go func() {
		appLogger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down")

	stopSubscribers()
	for _, s := range subscribers {
		if err := s.Stop(); err != nil {
			appLogger.Error(err, "failed to stop subscriber", "subscriber", s.Name())
		}
	}
	if broker != nil {
		_ = broker.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Notification.DrainTimeout)
	defer cancelDrain()
	if err := pool.Stop(drainCtx); err != nil {
		appLogger.Warn("Notification queue not fully drained", "error", err.Error(), "pending", pool.QueueDepth())
	}

	appLogger.Info("Server exited properly")
}

func buildSubscribers(cfg *config.Config, ingester ingest.Ingester, appLogger *logger.Logger, broker *messaging.Broker) []ingest.Subscriber {
	var subscribers []ingest.Subscriber

	if cfg.MQTT.Enabled {
		subscribers = append(subscribers, ingest.NewMQTTSubscriber(ingest.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, ingester, appLogger))
	}

	if cfg.Redis.Enabled {
		b, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig())
		if err != nil {
			appLogger.Fatal(err, "failed to connect to Redis")
		}
		*broker = b
		subscribers = append(subscribers, ingest.NewRedisSubscriber(b, cfg.Redis.AlertChannel, ingester, appLogger))
	}

	if cfg.Kafka.Enabled {
		consumer, err := ingest.NewKafkaConsumer(ingest.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, ingester, appLogger)
		if err != nil {
			appLogger.Fatal(err, "failed to configure Kafka consumer")
		}
		subscribers = append(subscribers, consumer)
	}

	return subscribers
}
