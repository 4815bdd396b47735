package middleware

import (
	"strings"

	"github.com/escrow-marketplace/backend/internal/auth"
	"github.com/escrow-marketplace/backend/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const CtxCaller = "caller"

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxCaller, claims.Caller())
		return c.Next()
	}
}

// GetCaller returns the authenticated address, or the zero address.
func GetCaller(c *fiber.Ctx) common.Address {
	addr, _ := c.Locals(CtxCaller).(common.Address)
	return addr
}

// AdminMiddleware requires the registry admin address.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	admin := cfg.Admin()
	return func(c *fiber.Ctx) error {
		if caller := GetCaller(c); caller == (common.Address{}) || caller != admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
		}
		return c.Next()
	}
}
