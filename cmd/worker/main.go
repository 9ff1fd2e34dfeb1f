package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/config"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/queue"
	"github.com/nikhilbhutani/rentalshop/internal/queue/workers"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("directory database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpt := queue.RedisOpt(cfg.Redis)
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	subs := subscription.NewService(db, subscription.NewSettingsStore(db))
	auditSvc := audit.NewService(db)

	registry := queue.NewHandlersRegistry()

	// Register workers
	trialWorker := workers.NewTrialSweepWorker(subs, auditSvc)
	provisionWorker := workers.NewProvisionWorker(
		tenant.NewDirectory(db),
		db,
		tenant.PgxOpener(cfg.Database.TenantMaxConns),
		cfg.Database.TenantMigrationsPath,
	)

	registry.Register(queue.TypeExpireTrials, asynq.HandlerFunc(trialWorker.ProcessTask))
	registry.Register(queue.TypeTenantProvision, asynq.HandlerFunc(provisionWorker.ProcessTask))

	scheduler, err := queue.NewScheduler(redisOpt, cfg.Worker.TrialSweepCron)
	if err != nil {
		slog.Error("invalid trial sweep schedule", "cron", cfg.Worker.TrialSweepCron, "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "trial_sweep", cfg.Worker.TrialSweepCron)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	srv.Shutdown()
	slog.Info("worker stopped")
}
