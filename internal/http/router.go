package http

import (
	"time"

	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/http/handlers"
	"github.com/escrow-marketplace/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Account  *handlers.AccountHandler
	Registry *handlers.RegistryHandler
	Market   *handlers.MarketHandler
	Auction  *handlers.AuctionHandler
	Store    *handlers.StoreHandler
	WS       *handlers.WSHub
}

// SetupRouter mounts every route on app. limiter backs the per-IP rate limit
// on /api/v1; nil disables it.
func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, limiter middleware.Counter, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	api.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	api.Post("/auth/nonce", h.Auth.Nonce)
	api.Post("/auth/login", h.Auth.Login)

	// Reads (public)
	api.Get("/registry", h.Registry.GetRegistry)
	api.Get("/convert", h.Registry.Convert)
	api.Get("/accounts/:address", h.Account.GetAccount)
	api.Get("/history", h.Account.History)

	api.Get("/listings", h.Market.ListListings)
	api.Get("/listings/:id", h.Market.GetListing)
	api.Get("/listings/:id/quote", h.Market.Quote)

	api.Get("/auctions", h.Auction.ListAuctions)
	api.Get("/auctions/:id", h.Auction.GetAuction)
	api.Get("/auctions/:id/bids/:address", h.Auction.GetBid)

	api.Get("/stores", h.Store.ListStores)
	api.Get("/stores/creation-fee", h.Store.CreationFee)
	api.Get("/stores/:store", h.Store.GetStore)
	api.Get("/stores/:store/products", h.Store.ListProducts)
	api.Get("/stores/:store/products/:id", h.Store.GetProduct)
	api.Get("/stores/:store/products/:id/reviews", h.Store.ListReviews)
	api.Get("/stores/:store/orders", h.Store.ListOrders)
	api.Get("/stores/:store/orders/:id", h.Store.GetOrder)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Account
	protected.Get("/me", h.Account.GetMe)
	protected.Get("/me/activity", h.Account.Activity)

	// Market
	protected.Post("/listings", h.Market.CreateListing)
	protected.Delete("/listings/:id", h.Market.Remove)
	protected.Post("/listings/:id/purchase", h.Market.Purchase)
	protected.Post("/listings/:id/cancel", h.Market.Cancel)
	protected.Post("/listings/:id/ship", h.Market.Ship)
	protected.Post("/listings/:id/confirm", h.Market.ConfirmReceived)

	// Auctions
	protected.Post("/auctions", h.Auction.StartAuction)
	protected.Post("/auctions/:id/bid", h.Auction.Bid)
	protected.Post("/auctions/:id/withdraw", h.Auction.WithdrawBid)
	protected.Post("/auctions/:id/end", h.Auction.EndAuction)

	// Stores
	protected.Post("/stores", h.Store.CreateStore)
	protected.Post("/stores/:store/products", h.Store.AddProduct)
	protected.Delete("/stores/:store/products/:id", h.Store.RemoveProduct)
	protected.Post("/stores/:store/orders", h.Store.CreateOrder)
	protected.Post("/stores/:store/orders/:id/fill", h.Store.FillOrder)
	protected.Post("/stores/:store/orders/:id/cancel", h.Store.CancelOrder)
	protected.Post("/stores/:store/orders/:id/confirm", h.Store.ConfirmReceived)
	protected.Post("/stores/:store/orders/:id/review", h.Store.LeaveReview)

	// Registry administration
	admin := protected.Group("", middleware.AdminMiddleware(cfg))
	admin.Post("/registry/components", h.Registry.SetComponentAddress)
	admin.Post("/registry/fees", h.Registry.SetFee)
	admin.Post("/registry/store-creation-fee", h.Registry.SetStoreCreationFee)
	admin.Post("/registry/withdraw", h.Registry.WithdrawFees)
	admin.Post("/ledger/credit", h.Registry.Credit)

	// WebSocket
	if h.WS != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WS.HandleWS))
	}
}
