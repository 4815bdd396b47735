package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuctionHandler struct {
	auctions *services.AuctionService
	log      *zap.Logger
}

func NewAuctionHandler(auctions *services.AuctionService, log *zap.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, log: log}
}

func (h *AuctionHandler) StartAuction(c *fiber.Ctx) error {
	var req dto.StartAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	startPrice, err := money.ParseUSD(req.StartPriceUSD)
	if err != nil {
		return respondError(c, err)
	}

	if req.DurationSeconds < 0 || req.DurationSeconds > int64(services.MaxAuctionDuration/time.Second) {
		return respondError(c, fmt.Errorf("%w: duration_seconds must be between 0 and %d",
			models.ErrInvalidArgument, int64(services.MaxAuctionDuration/time.Second)))
	}

	a, err := h.auctions.StartAuction(c.Context(), callFor(c, nil), req.Description, startPrice,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, a)
}

func (h *AuctionHandler) ListAuctions(c *fiber.Ctx) error {
	return ok(c, h.auctions.ListAuctions(c.Context(), c.Query("status")))
}

func (h *AuctionHandler) GetAuction(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	a, err := h.auctions.GetAuction(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, a)
}

// GetBid returns the escrowed total of :address on the auction.
func (h *AuctionHandler) GetBid(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	bidder, valid := parseAddress(c.Params("address"))
	if !valid {
		return badRequest(c, "invalid address")
	}
	amount, err := h.auctions.GetUserBidAmount(c.Context(), bidder, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(amount))
}

func (h *AuctionHandler) Bid(c *fiber.Ctx) error {
	return h.act(c, h.auctions.Bid)
}

func (h *AuctionHandler) EndAuction(c *fiber.Ctx) error {
	return h.act(c, h.auctions.EndAuction)
}

func (h *AuctionHandler) WithdrawBid(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	amount, err := h.auctions.WithdrawBid(c.Context(), call, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(amount))
}

func (h *AuctionHandler) act(c *fiber.Ctx, fn func(context.Context, services.Call, uint64) (*models.Auction, error)) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	a, err := fn(c.Context(), call, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, a)
}
