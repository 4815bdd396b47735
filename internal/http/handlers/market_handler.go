package handlers

import (
	"context"

	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MarketHandler struct {
	market *services.MarketService
	log    *zap.Logger
}

func NewMarketHandler(market *services.MarketService, log *zap.Logger) *MarketHandler {
	return &MarketHandler{market: market, log: log}
}

func (h *MarketHandler) CreateListing(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	price, err := money.ParseUSD(req.PriceUSD)
	if err != nil {
		return respondError(c, err)
	}

	l, err := h.market.List(c.Context(), callFor(c, nil), req.Title, req.Description, req.Image, price)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, l)
}

func (h *MarketHandler) ListListings(c *fiber.Ctx) error {
	return ok(c, h.market.ListListings(c.Context(), c.Query("status")))
}

func (h *MarketHandler) GetListing(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	l, err := h.market.GetListing(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, l)
}

// Quote returns the amount to attach when purchasing the listing now.
func (h *MarketHandler) Quote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	l, err := h.market.GetListing(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	price, err := h.market.ConvertPrice(c.Context(), l.PriceUSD)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(price))
}

func (h *MarketHandler) Purchase(c *fiber.Ctx) error {
	return h.act(c, h.market.Purchase)
}

func (h *MarketHandler) Cancel(c *fiber.Ctx) error {
	return h.act(c, h.market.Cancel)
}

func (h *MarketHandler) Ship(c *fiber.Ctx) error {
	return h.act(c, h.market.Ship)
}

func (h *MarketHandler) ConfirmReceived(c *fiber.Ctx) error {
	return h.act(c, h.market.ConfirmReceived)
}

func (h *MarketHandler) Remove(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.market.Remove(c.Context(), call, id); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

type listingAction func(ctx context.Context, call services.Call, id uint64) (*models.Listing, error)

func (h *MarketHandler) act(c *fiber.Ctx, fn listingAction) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid listing id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	l, err := fn(c.Context(), call, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, l)
}
