package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/db"
	"github.com/escrow-marketplace/backend/internal/events"
	apphttp "github.com/escrow-marketplace/backend/internal/http"
	"github.com/escrow-marketplace/backend/internal/http/handlers"
	"github.com/escrow-marketplace/backend/internal/ledger"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/oracle"
	"github.com/escrow-marketplace/backend/internal/repositories"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	fees, err := cfg.Fees()
	if err != nil {
		log.Fatal("invalid fee configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, db.Migrations(cfg.MigrationsDir), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	auditRepo := repositories.NewAuditRepo(pool)
	nonceRepo := repositories.NewNonceRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Price oracle
	source, closeSource, err := oracle.FromConfig(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("failed to set up price source", zap.Error(err))
	}
	defer closeSource()

	// Services
	book := ledger.NewWithStore(escrowRepo, log)
	registry := services.NewRegistry(cfg.Admin(), cfg.FeeSink(), fees, oracle.NewConverter(source), book, auditRepo, publisher, log)
	market := services.NewMarketService(cfg.Market(), registry, auditRepo, publisher, log)
	auctions := services.NewAuctionService(cfg.Auction(), registry, auditRepo, publisher, time.Now, log)
	factory := services.NewStoreFactoryService(cfg.StoreFactory(), registry, auditRepo, publisher, log)

	// Restore balances and component state from the last commit
	for _, step := range []struct {
		name    string
		restore func(context.Context) error
	}{
		{"ledger", book.Restore},
		{"registry", registry.Restore},
		{"market", market.Restore},
		{"auction", auctions.Restore},
		{"stores", factory.Restore},
	} {
		if err := step.restore(ctx); err != nil {
			log.Fatal("failed to restore state", zap.String("component", step.name), zap.Error(err))
		}
	}

	adminCall := services.NewCall(cfg.Admin())
	for kind, addr := range map[string]common.Address{
		models.ComponentMarket:       market.Address(),
		models.ComponentAuction:      auctions.Address(),
		models.ComponentStoreFactory: factory.Address(),
	} {
		if err := registry.SetComponentAddress(ctx, adminCall, kind, addr); err != nil {
			log.Fatal("failed to register component", zap.String("kind", kind), zap.Error(err))
		}
	}

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	h := apphttp.Handlers{
		Auth:     handlers.NewAuthHandler(nonceRepo, cfg, log),
		Account:  handlers.NewAccountHandler(registry, auditRepo, log),
		Registry: handlers.NewRegistryHandler(registry, log),
		Market:   handlers.NewMarketHandler(market, log),
		Auction:  handlers.NewAuctionHandler(auctions, log),
		Store:    handlers.NewStoreHandler(factory, log),
		WS:       wsHub,
	}

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
