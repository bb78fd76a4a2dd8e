package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/bridge/internal/config"
	"github.com/telhawk-systems/relay-stack/bridge/internal/dlq"
	"github.com/telhawk-systems/relay-stack/bridge/internal/handlers"
	"github.com/telhawk-systems/relay-stack/bridge/internal/queue"
	"github.com/telhawk-systems/relay-stack/bridge/internal/ratelimit"
	"github.com/telhawk-systems/relay-stack/bridge/internal/server"
	"github.com/telhawk-systems/relay-stack/bridge/internal/service"
	"github.com/telhawk-systems/relay-stack/bridge/internal/sinkclient"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/messaging"
	"github.com/telhawk-systems/relay-stack/common/middleware"
	"github.com/telhawk-systems/relay-stack/common/telemetry"

	natsclient "github.com/telhawk-systems/relay-stack/common/messaging/nats"
)

var version = "dev"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service(config.ServiceName))
	logging.SetDefault(logger)

	slog.Info("Starting bridge service",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("sink_url", cfg.Sink.URL),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
		slog.Int("rate_limit", cfg.RateLimit.Limit),
		slog.Duration("rate_window", cfg.RateLimit.Window),
		slog.Int("max_attempts", cfg.Queue.MaxAttempts),
		slog.String("dlq_backend", cfg.DLQ.Backend),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		fatal("Failed to initialize tracing", err)
	}

	// Initialize token service
	if cfg.Auth.UsingDefaultSecret() {
		slog.Warn("Using the default development JWT secret; set JWT_SECRET in production")
	}
	if cfg.Auth.TokenTTL > 0 {
		slog.Info("Token expiry enforced", slog.Duration("token_ttl", cfg.Auth.TokenTTL))
	}
	tokenService, err := tokens.NewService(cfg.Auth.TokenConfig())
	if err != nil {
		fatal("Failed to initialize token service", err)
	}

	// Initialize rate limiter
	limiter := newRateLimiter(ctx, cfg)
	defer limiter.Close()

	// Initialize Dead Letter Queue
	var readiness []namedCheck
	deadLetters, closeDLQ := newDeadLetterStore(ctx, cfg, logger, &readiness)
	defer closeDLQ()

	// Initialize sink client
	sink, err := sinkclient.New(sinkclient.Config{
		URL:      cfg.Sink.URL,
		Timeout:  cfg.Sink.Timeout,
		Brand:    cfg.Sink.Brand,
		CallerID: cfg.Sink.CallerID,
	}, tokenService, logger)
	if err != nil {
		fatal("Failed to initialize sink client", err)
	}

	// Initialize delivery queue
	deliveryQueue := queue.New(queue.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
		RateLimit:   cfg.RateLimit.Limit,
		RateWindow:  cfg.RateLimit.Window,
		Backoff: queue.Backoff{
			Type:  queue.BackoffType(cfg.Queue.Backoff.Type),
			Delay: cfg.Queue.Backoff.Delay,
			Max:   cfg.Queue.Backoff.Max,
		},
		Capacity:     cfg.Queue.Capacity,
		MaxInFlight:  cfg.Queue.MaxInFlight,
		PollInterval: cfg.Queue.PollInterval,
		RetentionTTL: cfg.Queue.RetentionTTL,
	}, sink, limiter, deadLetters, logger)

	// Initialize HTTP handlers
	ingress := service.NewIngressService(deliveryQueue, service.Options{
		GenerateMissingID: cfg.Ingress.GenerateMissingID,
	})
	handler := handlers.NewEventHandler(ingress, deadLetters, logger)
	for _, c := range readiness {
		handler.AddReadinessCheck(c.name, c.check)
	}
	router := server.NewRouter(handler, tokenService, middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		fatal("Failed to listen", err)
	}
	if err := serve(ctx, srv, ln, deliveryQueue, cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("Server error", logging.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Failed to flush traces", logging.Error(err))
	}

	slog.Info("Server stopped")
}

// serve runs the delivery queue and the HTTP server until ctx is done or the
// server fails. The queue outlives ctx: it is stopped only after Shutdown has
// drained in-flight requests, so jobs they accept are still dispatched.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, q *queue.Queue, shutdownTimeout time.Duration) error {
	q.Start(context.Background())
	defer q.Stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Bridge service listening", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

type namedCheck struct {
	name  string
	check handlers.ReadinessCheck
}

// newRateLimiter falls back to a per-process limiter when Redis is
// unreachable so that dispatch is still bounded.
func newRateLimiter(ctx context.Context, cfg *config.Config) ratelimit.RateLimiter {
	limiter, err := ratelimit.New(ctx, ratelimit.Config{
		Backend:   cfg.RateLimit.Backend,
		Limit:     cfg.RateLimit.Limit,
		Window:    cfg.RateLimit.Window,
		RedisURL:  cfg.Redis.URL,
		KeyPrefix: cfg.RateLimit.KeyPrefix,
	})
	if err == nil {
		if cfg.RateLimit.Backend == ratelimit.BackendNone {
			slog.Warn("Rate limiting disabled; dispatch to the sink is unbounded")
		}
		return limiter
	}
	if cfg.RateLimit.Backend != ratelimit.BackendRedis {
		fatal("Failed to initialize rate limiter", err)
	}

	slog.Warn("Failed to initialize Redis rate limiter, falling back to in-memory limiter",
		slog.String("redis_url", cfg.Redis.URL), logging.Error(err))
	memory, err := ratelimit.NewMemoryRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	if err != nil {
		fatal("Failed to initialize rate limiter", err)
	}
	return memory
}

func newDeadLetterStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, readiness *[]namedCheck) (dlq.Store, func()) {
	switch cfg.DLQ.Backend {
	case config.DLQBackendJetStream:
		jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "relay-bridge",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait,
			Logger:        logger.Logger,
		})
		if err != nil {
			fatal("Failed to connect to NATS for DLQ", err)
		}
		jsDLQ, err := dlq.NewJetStreamQueue(ctx, jsClient, logger.Logger)
		if err != nil {
			fatal("Failed to initialize JetStream DLQ", err)
		}
		*readiness = append(*readiness, namedCheck{
			name: "nats",
			check: func(ctx context.Context) (any, bool) {
				status := messaging.CheckClientHealth(ctx, jsClient)
				return status, status.Connected
			},
		})
		slog.Info("Dead Letter Queue enabled", slog.String("backend", "jetstream"), slog.String("nats", cfg.NATS.URL))
		return jsDLQ, func() {
			if err := jsClient.Drain(); err != nil {
				slog.Warn("Failed to drain NATS connection", logging.Error(err))
			}
		}
	case config.DLQBackendFile:
		fileDLQ, err := dlq.NewQueue(cfg.DLQ.Path)
		if err != nil {
			fatal("Failed to initialize file DLQ", err)
		}
		slog.Info("Dead Letter Queue enabled", slog.String("backend", "file"), slog.String("path", cfg.DLQ.Path))
		slog.Warn("File-based DLQ does not support multiple bridge instances")
		return fileDLQ, func() {}
	default:
		slog.Info("Dead Letter Queue disabled; exhausted deliveries are only logged")
		return nil, func() {}
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, logging.Error(err))
	os.Exit(1)
}
