package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imageUpscaler/worker/cache"
	"imageUpscaler/worker/config"
	"imageUpscaler/worker/engine"
	"imageUpscaler/worker/kafka"
	"imageUpscaler/worker/pool"
	"imageUpscaler/worker/repository"
	"imageUpscaler/worker/service"
	"imageUpscaler/worker/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("Worker Service starting",
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.Int("workers", cfg.WorkerCount),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.Ping(pingCtx); err != nil {
		pingCancel()
		logger.Fatal("Failed to ping postgres", zap.Error(err))
	}
	pingCancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	// Warm the engine before consuming anything: a missing or corrupt
	// model means no job can be served, so the process must die before
	// any message is claimed. Construction stays once-guarded for
	// concurrent first uses.
	upscaler := engine.New(cfg.ModelPath, cfg.UpscaleFactor, logger)
	if err := upscaler.EnsureInitialized(); err != nil {
		logger.Fatal("Engine initialization failed", zap.Error(err))
	}

	repo := repository.NewPostgresRepo(db)
	blobs := storage.NewPostgresBlobStore(db)
	statusCache := cache.NewStatusCache(redisClient)
	processor := service.NewProcessor(repo, blobs, upscaler, statusCache, logger)

	workerPool := pool.NewWorkerPool(cfg.WorkerCount)

	consumer, err := kafka.NewConsumer(strings.Split(cfg.KafkaBrokers, ","), cfg.KafkaGroupID, workerPool, logger)
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Consume(ctx, cfg.KafkaTopic, processor.Process)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Consumer stopped", zap.Error(err))
			workerPool.Wait()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down, draining in-flight jobs")
	workerPool.Wait()
}
