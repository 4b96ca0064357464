// Package app wires the bridge's dependency graph and owns the server
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ucplabs/ucp-bridge/internal/catalog"
	"github.com/ucplabs/ucp-bridge/internal/config"
	"github.com/ucplabs/ucp-bridge/internal/engine"
	"github.com/ucplabs/ucp-bridge/internal/event"
	handler "github.com/ucplabs/ucp-bridge/internal/handler/http"
	"github.com/ucplabs/ucp-bridge/internal/rpc"
	"github.com/ucplabs/ucp-bridge/internal/service"
	"github.com/ucplabs/ucp-bridge/pkg/health"
	pkgkafka "github.com/ucplabs/ucp-bridge/pkg/kafka"
	"github.com/ucplabs/ucp-bridge/pkg/tracing"
)

// Version is the bridge release version reported via discovery and the
// JSON-RPC initialize handshake.
const Version = "0.1.0"

const serviceName = "ucp-bridge"

// App wires together all dependencies and runs the bridge.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Commerce engine client. All cart and order state lives behind it.
	engineClient, err := engine.NewClient(engine.Config{
		BaseURL:        cfg.EngineBaseURL,
		RequestTimeout: time.Duration(cfg.EngineTimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init engine client: %w", err)
	}
	store := engine.NewSessionStore(engineClient, logger)
	logger.Info("engine client initialized", slog.String("base_url", cfg.EngineBaseURL))

	// Optional redis product cache.
	var redisClient *redis.Client
	if cfg.CacheEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, product cache degraded",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("redis product cache initialized", slog.String("addr", cfg.RedisAddr))
		}
	}

	catalogService := catalog.NewService(
		engineClient,
		redisClient,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		logger,
	)

	// Optional kafka lifecycle events.
	var producer *pkgkafka.Producer
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewProducer(producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	checkoutService := service.NewCheckoutService(store, publisher, logger)
	rpcServer := rpc.NewServer(checkoutService, catalogService, cfg.StoreName, Version, logger)

	// Health checks. The engine is the source of truth; without it the bridge
	// cannot serve anything.
	healthHandler := health.NewHandler()
	healthHandler.Register("engine", func(ctx context.Context) error {
		return engineClient.Ping(ctx)
	})
	if producer != nil {
		healthHandler.Register("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}

	router := handler.NewRouter(handler.RouterConfig{
		Checkout:      checkoutService,
		Catalog:       catalogService,
		RPC:           rpcServer,
		Health:        healthHandler,
		ServiceName:   serviceName,
		StoreName:     cfg.StoreName,
		StoreCurrency: cfg.StoreCurrency,
		Version:       Version,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: drain HTTP first, then flush
// spans from the drained requests, then close the brokers and the cache.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
