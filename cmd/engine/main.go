// Package main is the entry point for the Ordercast engine server.
//
// It loads configuration, connects PostgreSQL and the optional Redis
// dedupe cache, wires the trigger dispatcher and backfill processor, and
// runs two loops under one errgroup: the HTTP API and the periodic
// backfill poller. Graceful shutdown is handled via OS signal
// interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"ordercast/internal/api/handlers"
	"ordercast/internal/backfill"
	"ordercast/internal/cache"
	"ordercast/internal/config"
	"ordercast/internal/core"
	"ordercast/internal/db"
	"ordercast/internal/engine"
	"ordercast/internal/external"
	"ordercast/internal/metrics"
	"ordercast/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("ordercast engine starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), db.PoolSettings{
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	ruleRepo := db.NewRuleRepository(pool)
	ledgerRepo := db.NewDedupLedgerRepository(pool)
	notifRepo := db.NewNotificationRepository(pool)
	backfillRepo := db.NewBackfillRepository(pool)
	customerRepo := db.NewCustomerRepository(pool)

	dispatcher := engine.NewDispatcher(ruleRepo, ledgerRepo, notifRepo, logger)
	processor := backfill.NewProcessor(backfillRepo, customerRepo, ruleRepo, ledgerRepo, notifRepo, logger)

	probes := []core.HealthProbe{dbProbe{pool: pool}}

	// Optional Redis fast path in front of the ledger.
	if cfg.Redis.Addr != "" {
		dedupeCache, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password.Unmask(), cfg.Redis.ClaimTTL)
		if err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		defer dedupeCache.Close()
		dispatcher.Cache = dedupeCache
		probes = append(probes, redisProbe{client: dedupeCache})
		logger.Info("dedupe cache enabled", "addr", cfg.Redis.Addr)
	}

	// Wake-up transport: SQS when a queue is configured, HTTP fallback
	// otherwise. Both are best-effort; the delivery worker polls too.
	var waker engine.Waker
	switch {
	case cfg.AWS.DeliveryQueueURL != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS SDK config: %w", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = &cfg.AWS.EndpointURL
			}
		})
		publisher := queue.NewWakeupPublisher(sqsClient, cfg.AWS.DeliveryQueueURL, logger)

		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = &cfg.AWS.EndpointURL
			}
		})
		recorder := metrics.NewCloudWatchRecorder(cwClient, logger)
		dispatcher.Stats = recorder
		processor.Stats = recorder
		publisher.Stats = recorder
		waker = publisher
	case cfg.Worker.WakeURL != "":
		httpClient := &http.Client{Timeout: cfg.Worker.Timeout}
		waker = external.NewWorkerClient(httpClient, cfg.Worker.WakeURL, logger)
	}
	dispatcher.Wake = waker
	processor.Wake = waker

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = probes

	eventsHandler := handlers.NewEventsHandler(dispatcher, core.NewValidator(logger), logger)
	rulesHandler := handlers.NewRulesHandler(ruleRepo, core.NewValidator(logger), logger)
	backfillHandler := handlers.NewBackfillHandler(backfillRepo, core.NewValidator(logger), logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { eventsHandler.RegisterRoutes(r) },
		func(r chi.Router) { rulesHandler.RegisterRoutes(r) },
		func(r chi.Router) { backfillHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return runBackfillLoop(gctx, processor, cfg.Backfill, logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("engine stopped cleanly")
	return nil
}

// runBackfillLoop drives the backfill processor on a fixed interval until
// the context is cancelled. Batch errors are logged and the loop
// continues; only cancellation stops it.
func runBackfillLoop(ctx context.Context, p *backfill.Processor, cfg config.BackfillConfig, logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx, cfg.BatchLimit); err != nil {
				logger.ErrorContext(ctx, "backfill batch failed", "error", err)
			}
		}
	}
}

type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string                    { return "database" }
func (p dbProbe) Check(ctx context.Context) error { return p.pool.Ping(ctx) }

type redisProbe struct {
	client *cache.DedupeClient
}

func (p redisProbe) Name() string                    { return "redis" }
func (p redisProbe) Check(ctx context.Context) error { return p.client.Ping(ctx) }

// newLogger creates a structured JSON slog.Logger at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
