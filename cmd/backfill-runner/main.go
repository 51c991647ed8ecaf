// Package main is the scheduled backfill runner Lambda. EventBridge
// invokes it on a fixed schedule; each invocation drains one batch of due
// backfill items through the same processor the engine's in-process
// poller uses. Running both is safe: item claims go through the dedup
// ledger, so overlapping runs cannot double-schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"ordercast/internal/backfill"
	"ordercast/internal/config"
	"ordercast/internal/db"
)

// runner holds the cold-start wiring.
type runner struct {
	processor  *backfill.Processor
	batchLimit int
	log        *slog.Logger
}

// Handler processes one batch per invocation.
func (r *runner) Handler(ctx context.Context) error {
	stats, err := r.processor.ProcessBatch(ctx, r.batchLimit)
	if err != nil {
		return fmt.Errorf("backfill batch failed: %w", err)
	}

	r.log.InfoContext(ctx, "invocation complete",
		"items_processed", stats.ItemsProcessed,
		"notifications_created", stats.NotificationsCreated,
		"items_skipped", stats.ItemsSkipped,
		"jobs_completed", stats.JobsCompleted,
		"errors", stats.Errors,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("backfill runner initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL.Unmask(), db.PoolSettings{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	processor := backfill.NewProcessor(
		db.NewBackfillRepository(pool),
		db.NewCustomerRepository(pool),
		db.NewRuleRepository(pool),
		db.NewDedupLedgerRepository(pool),
		db.NewNotificationRepository(pool),
		logger,
	)

	r := &runner{
		processor:  processor,
		batchLimit: cfg.Backfill.BatchLimit,
		log:        logger,
	}

	logger.Info("backfill runner initialized", "batch_limit", r.batchLimit)

	// Local mode: run a single batch directly instead of starting the
	// Lambda runtime. Usage: APP_ENV=local go run cmd/backfill-runner/main.go [limit]
	if cfg.Environment == "local" {
		limit := r.batchLimit
		if len(os.Args) > 1 {
			if n, err := strconv.Atoi(os.Args[1]); err == nil && n > 0 {
				limit = n
			}
		}
		if _, err := r.processor.ProcessBatch(ctx, limit); err != nil {
			logger.Error("batch execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("batch execution completed successfully")
		return
	}

	lambda.Start(r.Handler)
}
