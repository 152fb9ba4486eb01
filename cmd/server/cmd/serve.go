package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/datastudy/internal/api"
	"github.com/Togather-Foundation/datastudy/internal/api/handlers"
	"github.com/Togather-Foundation/datastudy/internal/auth"
	"github.com/Togather-Foundation/datastudy/internal/config"
	"github.com/Togather-Foundation/datastudy/internal/domain/records"
	"github.com/Togather-Foundation/datastudy/internal/kafka"
	"github.com/Togather-Foundation/datastudy/internal/metrics"
	"github.com/Togather-Foundation/datastudy/internal/storage/postgres"
	"github.com/Togather-Foundation/datastudy/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	host string
	port int
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending database migrations when DATABASE_MIGRATE_ON_START is true
- Publish change events to Kafka, or log them when KAFKA_BROKERS is empty
- Handle graceful shutdown on SIGINT/SIGTERM, draining queued events

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			flags.apply(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "server port (default: 5001)")
	return cmd
}

func (f *serveFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.port != 0 {
		cfg.Server.Port = f.port
	}
}

// runServer serves until ctx is cancelled, then shuts the HTTP server down and
// drains the event publisher.
func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting datastudy server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if cfg.Database.MigrateOnStart {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	dbCollector := metrics.NewDBCollector(pool)
	go dbCollector.Start(ctx, 15*time.Second)
	defer dbCollector.Stop()

	publisher := kafka.NewPublisher(newEventWriter(cfg.Kafka, logger), cfg.Kafka.QueueSize, cfg.Kafka.WriteTimeout, logger)
	publisher.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := publisher.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("event publisher shutdown error")
		} else {
			logger.Info().Msg("event publisher stopped")
		}
	}()

	handler := api.NewRouter(api.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Records:      records.NewService(repo.Records(), publisher),
		Introspector: newIntrospector(cfg, logger),
		Health:       handlers.NewHealthChecker(repo, publisher, Version, GitCommit),
		Build:        api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	})
	return g.Wait()
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return pool, nil
}

// newIntrospector prefers Keycloak and falls back to locally signed HS256 tokens.
func newIntrospector(cfg config.Config, logger zerolog.Logger) auth.Introspector {
	if cfg.UseKeycloak() {
		logger.Info().Str("realm", cfg.Keycloak.Realm).Msg("using keycloak token introspection")
		return auth.NewKeycloakIntrospector(cfg.Keycloak.URL, cfg.Keycloak.Realm, cfg.Keycloak.ClientID, cfg.Keycloak.ClientSecret)
	}
	logger.Warn().Msg("KEYCLOAK_URL not set; accepting locally signed development tokens")
	return auth.NewJWTIntrospector(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.JWTIssuer)
}

// newEventWriter writes to Kafka when brokers are configured and to the log otherwise.
func newEventWriter(cfg config.KafkaConfig, logger zerolog.Logger) kafka.MessageWriter {
	if len(cfg.Brokers) == 0 {
		logger.Warn().Str("topic", cfg.Topic).Msg("KAFKA_BROKERS not set; change events are logged only")
		return kafka.NewLogWriter(cfg.Topic, logger)
	}
	return kafka.NewWriter(cfg.Brokers, cfg.Topic, cfg.WriteTimeout)
}
