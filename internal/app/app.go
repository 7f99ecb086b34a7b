package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"izin-talep/internal/config"
	"izin-talep/internal/guard"
	"izin-talep/internal/guard/infra"
	"izin-talep/internal/leave"
	"izin-talep/internal/messaging/kafka"
	"izin-talep/internal/metrics"
	"izin-talep/internal/middleware"
	"izin-talep/internal/session"
	"izin-talep/internal/shared/apperror"
	"izin-talep/internal/shared/connection"
	"izin-talep/internal/shared/response"
	"izin-talep/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App holds what BuildApp wired so the caller can shut it down.
type App struct {
	Backends *storage.Backends
	closers  []func()
}

// Close releases connections in reverse order of creation.
func (a *App) Close(context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// BuildApp connects the configured backends and registers every route on
// router.
func BuildApp(router *gin.Engine, cfg *config.Config, logger *zap.Logger) (*App, error) {
	backends, err := storage.Open(*cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Backends: backends, closers: []func(){backends.Close}}

	m := metrics.New()

	publisher, err := buildPublisher(a, cfg, backends, logger)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	// --- Authorization guard ---
	enforcer, err := infra.NewEnforcer()
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	guardService, err := guard.NewService(enforcer, guard.ServiceConfig{
		LoginPath:   cfg.Guard.LoginPath,
		Rules:       guard.DefaultRules(),
		Permissions: guard.DefaultPermissions(),
		Metrics:     m,
	}, logger)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	// --- Services ---
	tokens := session.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	sessionService := session.NewService(backends.Sessions, tokens, session.ServiceConfig{
		Timeout: cfg.Storage.Timeout,
		Retries: cfg.Storage.Retries,
		Metrics: m,
	}, logger)
	leaveService := leave.NewService(backends.Leaves, leave.ServiceConfig{
		Timeout:   cfg.Storage.Timeout,
		Retries:   cfg.Storage.Retries,
		Publisher: publisher,
		Metrics:   m,
	}, logger)

	// --- Handlers ---
	sessionHandler := session.NewHandler(sessionService, logger)
	leaveHandler := leave.NewHandler(leaveService, logger)
	guardHandler := guard.NewHandler(guardService, logger)

	// --- Routes Registration ---
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics(m))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyHeader, "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"}, nil)
	})
	router.GET("/ready", readiness(backends.Health))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")
	{
		session.RegisterRoutes(api, sessionHandler, sessionService)
		guard.RegisterRoutes(api, guardHandler, sessionService)
		leave.RegisterRoutes(api, leaveHandler, sessionService, guardService, backends.Redis, logger)
	}

	return a, nil
}

func buildPublisher(a *App, cfg *config.Config, backends *storage.Backends, logger *zap.Logger) (leave.EventPublisher, error) {
	switch cfg.Kafka.Mode {
	case config.KafkaModeDirect:
		writer, err := connection.ConnectKafkaWithRetry(cfg.Kafka.Broker, 5)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = writer.Close() })
		logger.Info("leave events published directly", zap.String("topic", cfg.Kafka.Topic))
		return leave.NewKafkaEventPublisher(writer, cfg.Kafka.Topic), nil

	case config.KafkaModeOutbox:
		if backends.DB == nil {
			return nil, fmt.Errorf("kafka outbox requires a sql storage driver")
		}
		if err := kafka.MigrateOutbox(backends.DB); err != nil {
			return nil, fmt.Errorf("migrate outbox: %w", err)
		}
		// outbox rows are written in the leave transaction
		backends.Leaves = leave.NewOutboxRepository(backends.DB, kafka.NewOutboxRepository(backends.DB), cfg.Kafka.Topic)
		logger.Info("leave events written to outbox", zap.String("topic", cfg.Kafka.Topic))
	}
	return leave.NewNoopEventPublisher(), nil
}

func readiness(health storage.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := health.Ping(ctx); err != nil {
			response.Error(c, http.StatusServiceUnavailable, apperror.CodeServiceUnavailable, "Storage is not reachable", err.Error())
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ready"}, nil)
	}
}
