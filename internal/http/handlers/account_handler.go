package handlers

import (
	"context"
	"strconv"

	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/middleware"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ActivityReader reads the audit journal. repositories.AuditRepo implements it.
type ActivityReader interface {
	GetByActor(ctx context.Context, actor common.Address, limit, offset int) ([]models.AuditLog, error)
	GetByEntity(ctx context.Context, component common.Address, entityType, entityID string, limit, offset int) ([]models.AuditLog, error)
}

type AccountHandler struct {
	registry *services.Registry
	activity ActivityReader
	log      *zap.Logger
}

// NewAccountHandler builds the /me handler. activity may be nil when no
// audit journal is configured.
func NewAccountHandler(registry *services.Registry, activity ActivityReader, log *zap.Logger) *AccountHandler {
	return &AccountHandler{registry: registry, activity: activity, log: log}
}

func (h *AccountHandler) accountOf(addr common.Address) dto.AccountResponse {
	bal := h.registry.Ledger().BalanceOf(addr)
	return dto.AccountResponse{
		Address:    addr.Hex(),
		Balance:    money.FormatNative(bal),
		BalanceWei: bal.String(),
		IsAdmin:    addr == h.registry.Admin(),
	}
}

func (h *AccountHandler) GetMe(c *fiber.Ctx) error {
	return ok(c, h.accountOf(middleware.GetCaller(c)))
}

// GetAccount reports any address's balance.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	addr, valid := parseAddress(c.Params("address"))
	if !valid {
		return badRequest(c, "invalid address")
	}
	return ok(c, h.accountOf(addr))
}

// Journal page bounds.
const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// page reads limit and offset, clamping limit to 1..maxPageLimit and offset
// to zero or more.
func page(c *fiber.Ctx) (limit, offset int) {
	limit = defaultPageLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = min(max(n, 1), maxPageLimit)
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil {
		offset = max(n, 0)
	}
	return limit, offset
}

func (h *AccountHandler) Activity(c *fiber.Ctx) error {
	if h.activity == nil {
		return ok(c, []models.AuditLog{})
	}

	limit, offset := page(c)
	logs, err := h.activity.GetByActor(c.Context(), middleware.GetCaller(c), limit, offset)
	if err != nil {
		h.log.Error("failed to read activity", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return ok(c, logs)
}

// History lists the journal of one record: ?component=<address>&entity_type=&entity_id=.
func (h *AccountHandler) History(c *fiber.Ctx) error {
	component, valid := parseAddress(c.Query("component"))
	if !valid || c.Query("entity_type") == "" || c.Query("entity_id") == "" {
		return badRequest(c, "component, entity_type and entity_id are required")
	}
	if h.activity == nil {
		return ok(c, []models.AuditLog{})
	}

	limit, offset := page(c)
	logs, err := h.activity.GetByEntity(c.Context(), component, c.Query("entity_type"), c.Query("entity_id"), limit, offset)
	if err != nil {
		h.log.Error("failed to read history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return ok(c, logs)
}
