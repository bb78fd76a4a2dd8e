package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/telhawk-systems/relay-stack/auth/pkg/tokens"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/telemetry"
	"github.com/telhawk-systems/relay-stack/sink/internal/config"
	"github.com/telhawk-systems/relay-stack/sink/internal/handlers"
	"github.com/telhawk-systems/relay-stack/sink/internal/metrics"
	"github.com/telhawk-systems/relay-stack/sink/internal/repository"
	"github.com/telhawk-systems/relay-stack/sink/internal/server"
	"github.com/telhawk-systems/relay-stack/sink/internal/service"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service(config.ServiceName))
	logging.SetDefault(logger)

	slog.Info("Starting sink service",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("store", cfg.Store.Backend),
		slog.Float64("delay_probability", cfg.Delay.Probability),
		slog.Duration("delay_min", cfg.Delay.Min),
		slog.Duration("delay_max", cfg.Delay.Max),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, version)
	if err != nil {
		fatal("Failed to initialize tracing", err)
	}

	if cfg.Auth.UsingDefaultSecret() {
		slog.Warn("Using the default development JWT secret; set JWT_SECRET in production")
	}
	tokenService, err := tokens.NewService(cfg.Auth.TokenConfig())
	if err != nil {
		fatal("Failed to initialize token service", err)
	}

	repo := newRepository(ctx, cfg)
	defer repo.Close()

	events := service.NewEventService(repo, service.DelayConfig{
		Probability: cfg.Delay.Probability,
		Min:         cfg.Delay.Min,
		Max:         cfg.Delay.Max,
	}, metrics.Observer{})
	handler := handlers.NewEventHandler(events, logger)
	router := server.NewRouter(handler, tokenService, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Sink service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("Server error", logging.Error(err))
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("Failed to flush traces", logging.Error(err))
	}

	slog.Info("Server stopped")
}

func newRepository(ctx context.Context, cfg *config.Config) repository.Repository {
	switch cfg.Store.Backend {
	case repository.BackendPostgres:
		version, err := repository.Migrate(cfg.Database.Migrations, cfg.Database.URL)
		if err != nil {
			fatal("Failed to run migrations", err)
		}
		slog.Info("Database migrations applied", slog.Uint64("version", uint64(version)))

		repo, err := repository.NewPostgresRepository(ctx, cfg.Database.URL)
		if err != nil {
			fatal("Failed to connect to database", err)
		}
		slog.Info("Using PostgreSQL store")
		return repo
	case repository.BackendOpenSearch:
		repo, err := repository.NewOpenSearchRepository(ctx, repository.OpenSearchConfig{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			Index:         cfg.OpenSearch.Index,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
		})
		if err != nil {
			fatal("Failed to connect to OpenSearch", err)
		}
		slog.Info("Using OpenSearch store", slog.String("index", cfg.OpenSearch.Index))
		return repo
	default:
		slog.Info("Using in-memory store; events are lost on restart")
		return repository.NewInMemoryRepository()
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, logging.Error(err))
	os.Exit(1)
}
