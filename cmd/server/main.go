// Command server runs the linksigner HTTP API.
package main

import (
	"context"
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
	"github.com/dharsanguruparan/linksigner/internal/processing"
	"github.com/dharsanguruparan/linksigner/internal/queue"
	"github.com/dharsanguruparan/linksigner/internal/ratelimit"
	"github.com/dharsanguruparan/linksigner/internal/repository"
	"github.com/dharsanguruparan/linksigner/internal/s3storage"
	"github.com/dharsanguruparan/linksigner/internal/server"
	"github.com/dharsanguruparan/linksigner/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
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
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting linksigner", zap.Any("config", cfg.Redacted()))

	signer, err := cfg.NewSigner()
	if err != nil {
		return fmt.Errorf("init signer: %w", err)
	}
	limiter, err := ratelimit.New(cfg.RateLimit())
	if err != nil {
		return fmt.Errorf("init limiter: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	deps := server.Deps{
		Signer:  signer,
		Files:   storage.NewMemoryStore(),
		Blobs:   blobs,
		Limiter: limiter,
		Logger:  logger,
	}

	var recorder processing.Recorder
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		repo := repository.NewLinkRepository(pool)
		recorder, deps.Audit = repo, repo
	} else {
		links := storage.NewLinkLog()
		recorder, deps.Audit = links, links
	}

	if cfg.UseRedis() {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		deps.Publisher = queue.NewPublisher(client)
		logger.Info("link events go to redis", zap.String("redis_addr", cfg.RedisAddr))
	} else {
		processor := processing.New(recorder, cfg.AuditWorkers, logger.Named("audit"))
		auditCtx, cancelAudit := context.WithCancel(ctx)
		processor.Start(auditCtx)
		defer func() {
			cancelAudit()
			processor.Wait()
		}()
		deps.Publisher = processor
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	return srv.Serve(ctx)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	if !cfg.UseS3() {
		store, err := storage.NewDiskStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("init disk store: %w", err)
		}
		return store, nil
	}
	store, err := s3storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init s3 store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
