package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/db"
	"github.com/escrow-marketplace/backend/internal/events"
	"github.com/escrow-marketplace/backend/internal/oracle"
	"github.com/escrow-marketplace/backend/internal/repositories"
	"github.com/escrow-marketplace/backend/internal/worker"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	nonceRepo := repositories.NewNonceRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	source, closeSource, err := oracle.FromConfig(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("failed to set up price source", zap.Error(err))
	}
	defer closeSource()

	watcher := worker.NewAuctionWatcher(publisher, time.Now, log)
	if err := subscriber.Subscribe(ctx, events.StreamAuction, watcher.Handle); err != nil {
		log.Fatal("failed to subscribe to auction events", zap.Error(err))
	}

	log.Info("worker started")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if refresher, ok := source.(worker.RateRefresher); ok {
		g.Go(func() error {
			worker.Every(ctx, cfg.RateRefreshInterval, func(ctx context.Context) {
				worker.RefreshRate(ctx, refresher, log)
			})
			return nil
		})
	}
	g.Go(func() error {
		worker.Every(ctx, cfg.AuctionScanInterval, func(ctx context.Context) {
			watcher.Scan(ctx)
		})
		return nil
	})
	g.Go(func() error {
		worker.Every(ctx, time.Hour, func(ctx context.Context) {
			worker.PruneNonces(ctx, nonceRepo, log)
		})
		return nil
	})

	// Health endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "watched_auctions": watcher.Pending()})
	})
	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%s", cfg.WorkerPort))
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped", zap.Error(err))
	}
	log.Info("worker shut down")
}
