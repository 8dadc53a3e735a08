package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/introslabs/intros/internal/app"
	"github.com/introslabs/intros/internal/cache"
	"github.com/introslabs/intros/internal/config"
	"github.com/introslabs/intros/internal/db"
	"github.com/introslabs/intros/internal/index"
	"github.com/introslabs/intros/internal/logger"
	"github.com/introslabs/intros/internal/notify"
	"github.com/introslabs/intros/internal/service/profile"
	"github.com/introslabs/intros/internal/service/relationship"
	"github.com/introslabs/intros/internal/transport"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Relevance index, rebuilt from the store on every boot.
	idx, err := index.New()
	if err != nil {
		log.Error("failed to init relevance index", "err", err)
		return
	}

	appCtx := app.New(cfg, database, redisCache, idx, log)

	if cfg.App.Env == "development" {
		if err := db.SeedDemoData(database); err != nil {
			log.Error("failed to seed demo data", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profileSvc := profile.NewService(appCtx)
	indexed, err := profileSvc.RebuildIndex(ctx)
	if err != nil {
		log.Error("failed to rebuild relevance index", "err", err)
		return
	}
	log.Info("relevance index rebuilt", "profiles", indexed)

	// Expire stale pending requests once at boot; the notifier interval
	// re-runs it from then on.
	relationshipSvc := relationship.NewService(appCtx)
	if removed, err := relationshipSvc.ExpireStale(ctx); err != nil {
		log.Error("failed to expire stale requests", "err", err)
	} else {
		log.Info("stale request sweep complete", "removed", removed)
	}

	notifier := notify.New(database, cfg, transport.NewLogDeliverer(log), log)
	go func() {
		notifier.Run(ctx, cfg.Notify.Interval)
	}()
	go func() {
		expireLoop(ctx, relationshipSvc, cfg)
	}()

	log.Info("engine started", "env", cfg.App.Env)
	<-ctx.Done()
	log.Info("shutting down")
}

// expireLoop re-runs the stale-request sweep on the notify interval.
// Each run is idempotent, so the cadence only bounds how long an
// abandoned request can outlive its TTL.
func expireLoop(ctx context.Context, svc *relationship.Service, cfg *config.Config) {
	ticker := time.NewTicker(cfg.Notify.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpireStale(ctx); err != nil {
				logger.Error("stale request sweep failed", "err", err)
			}
		}
	}
}
