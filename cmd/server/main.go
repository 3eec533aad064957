package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ananthjv/pixlift/internal/api"
	"github.com/ananthjv/pixlift/internal/auth"
	"github.com/ananthjv/pixlift/internal/config"
	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/database"
	"github.com/ananthjv/pixlift/internal/metadata"
	"github.com/ananthjv/pixlift/internal/objectstore"
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

	store, err := objectstore.New(cfg)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}
	if err := store.EnsureBuckets(ctx); err != nil {
		log.Fatalf("ensure buckets: %v", err)
	}

	resolver := auth.NewResolver(cfg.SigningSecret)
	issuer := credential.NewIssuer(store, cfg.CredentialTTL)
	access := metadata.NewAccess(metadata.NewRepository(pool))

	srv := api.New(cfg, resolver, issuer, access)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
