package handlers

import (
	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type RegistryHandler struct {
	registry *services.Registry
	log      *zap.Logger
}

func NewRegistryHandler(registry *services.Registry, log *zap.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, log: log}
}

func (h *RegistryHandler) GetRegistry(c *fiber.Ctx) error {
	return ok(c, h.registry.Snapshot())
}

// Convert quotes the native amount for ?usd= at the current rate.
func (h *RegistryHandler) Convert(c *fiber.Ctx) error {
	usd, err := money.ParseUSD(c.Query("usd"))
	if err != nil {
		return respondError(c, err)
	}
	native, err := h.registry.ConvertPrice(c.Context(), usd)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, dto.ConvertResponse{
		USD:       money.FormatUSD(usd),
		Native:    money.FormatNative(native),
		NativeWei: native.String(),
	})
}

func (h *RegistryHandler) SetComponentAddress(c *fiber.Ctx) error {
	var req dto.SetComponentAddressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, valid := parseAddress(req.Address)
	if !valid {
		return badRequest(c, "invalid address")
	}
	if err := h.registry.SetComponentAddress(c.Context(), callFor(c, nil), req.Kind, addr); err != nil {
		return respondError(c, err)
	}
	return ok(c, h.registry.Snapshot())
}

func (h *RegistryHandler) SetFee(c *fiber.Ctx) error {
	var req dto.SetFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.registry.SetFee(c.Context(), callFor(c, nil), req.Kind, req.Rate); err != nil {
		return respondError(c, err)
	}
	return ok(c, h.registry.Snapshot())
}

func (h *RegistryHandler) SetStoreCreationFee(c *fiber.Ctx) error {
	var req dto.SetStoreCreationFeeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	usd, err := money.ParseUSD(req.USD)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.registry.SetStoreCreationFee(c.Context(), callFor(c, nil), usd); err != nil {
		return respondError(c, err)
	}
	return ok(c, h.registry.Snapshot())
}

func (h *RegistryHandler) WithdrawFees(c *fiber.Ctx) error {
	var req dto.WithdrawFeesRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	to, valid := parseAddress(req.To)
	if !valid {
		return badRequest(c, "invalid address")
	}
	amount, err := money.ParseWei(req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.registry.WithdrawFees(c.Context(), callFor(c, nil), to, amount); err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(h.registry.Ledger().BalanceOf(h.registry.FeeSink())))
}

// Credit deposits funds into an account. Admin only; it stands in for an
// external deposit.
func (h *RegistryHandler) Credit(c *fiber.Ctx) error {
	var req dto.CreditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, valid := parseAddress(req.Address)
	if !valid {
		return badRequest(c, "invalid address")
	}
	amount, err := money.ParseWei(req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.registry.Ledger().Credit(c.Context(), addr, amount); err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(h.registry.Ledger().BalanceOf(addr)))
}
