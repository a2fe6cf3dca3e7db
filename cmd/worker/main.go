// Command worker drains link audit events from Redis into Postgres.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/linksigner/internal/config"
	"github.com/dharsanguruparan/linksigner/internal/database"
	"github.com/dharsanguruparan/linksigner/internal/logging"
	"github.com/dharsanguruparan/linksigner/internal/repository"
	"github.com/dharsanguruparan/linksigner/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.UseRedis() || cfg.DatabaseURL == "" {
		return errors.New("worker needs LINKSIGNER_REDIS_ADDR and LINKSIGNER_DATABASE_URL")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.AuditWorkers,
		Logger:      logger.Named("asynq").Sugar(),
	})
	processor := worker.NewProcessor(repository.NewLinkRepository(pool), logger)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info("worker started", zap.String("redis_addr", cfg.RedisAddr), zap.Int("concurrency", cfg.AuditWorkers))
	if err := srv.Run(processor.Handler()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
