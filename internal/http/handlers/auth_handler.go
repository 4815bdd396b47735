package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/escrow-marketplace/backend/internal/auth"
	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NonceStore issues and consumes login challenges. repositories.NonceRepo
// implements it.
type NonceStore interface {
	Create(ctx context.Context, address common.Address, ttl time.Duration) (*models.LoginNonce, error)
	Consume(ctx context.Context, address common.Address, nonce string) (*models.LoginNonce, error)
}

type AuthHandler struct {
	nonces NonceStore
	cfg    *config.Config
	log    *zap.Logger
}

func NewAuthHandler(nonces NonceStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{nonces: nonces, cfg: cfg, log: log}
}

// Nonce issues a challenge for the address to sign.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req dto.NonceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, valid := parseAddress(req.Address)
	if !valid {
		return badRequest(c, "invalid address")
	}

	n, err := h.nonces.Create(c.Context(), addr, h.cfg.NonceTTL)
	if err != nil {
		h.log.Error("failed to create nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.NonceResponse{
		Nonce:     n.Nonce,
		Message:   models.LoginMessage(h.cfg.LoginDomain, n.Nonce),
		ExpiresAt: n.ExpiresAt,
	})
}

// Login exchanges a signed challenge for a session token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	addr, valid := parseAddress(req.Address)
	if !valid || req.Nonce == "" || req.Signature == "" {
		return badRequest(c, "address, nonce and signature are required")
	}

	message := models.LoginMessage(h.cfg.LoginDomain, req.Nonce)
	if err := auth.VerifyWalletSignature(addr, message, req.Signature); err != nil {
		h.log.Debug("wallet signature rejected", zap.String("address", addr.Hex()), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	if _, err := h.nonces.Consume(c.Context(), addr, req.Nonce); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "nonce expired or already used"})
		}
		h.log.Error("failed to consume nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, addr, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	h.log.Info("wallet login", zap.String("address", addr.Hex()))
	return c.JSON(dto.AuthResponse{Token: token, Address: addr.Hex()})
}
