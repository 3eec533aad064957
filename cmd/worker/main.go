package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ananthjv/pixlift/internal/config"
	"github.com/ananthjv/pixlift/internal/database"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/notify"
	"github.com/ananthjv/pixlift/internal/objectstore"
	"github.com/ananthjv/pixlift/internal/queue"
	"github.com/ananthjv/pixlift/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := metadata.NewRepository(pool)

	store, err := objectstore.New(cfg)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// The listener turns raw-bucket write events into optimize jobs; the asynq
	// server consumes them. Both run until the signal context cancels.
	enqueueClient := asynq.NewClient(redisOpt)
	defer enqueueClient.Close()
	listener := notify.NewListener(store, queue.NewClient(enqueueClient), cfg.ProcessingPool)
	go listener.Run(ctx)

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.ProcessingPool,
	})
	processor := worker.NewProcessor(repo, store)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
