package handlers

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/escrow-marketplace/backend/internal/http/dto"
	"github.com/escrow-marketplace/backend/internal/middleware"
	"github.com/escrow-marketplace/backend/internal/models"
	"github.com/escrow-marketplace/backend/internal/money"
	"github.com/escrow-marketplace/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// errorStatus maps business errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrPaymentMismatch),
		errors.Is(err, models.ErrInsufficientAmount),
		errors.Is(err, models.ErrInsufficientFunds):
		return fiber.StatusPaymentRequired
	case errors.Is(err, models.ErrWrongStatus),
		errors.Is(err, models.ErrInvalidParty),
		errors.Is(err, models.ErrPeriodNotReached),
		errors.Is(err, models.ErrNothingToWithdraw),
		errors.Is(err, models.ErrAlreadyReviewed),
		errors.Is(err, models.ErrOutOfStock):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrInvalidArgument):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrOracleUnavailable):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(errorStatus(err)).JSON(dto.ErrorResponse{Error: err.Error(), RequestID: reqID})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: data})
}

func paramID(c *fiber.Ctx, name string) (uint64, error) {
	return strconv.ParseUint(c.Params(name), 10, 64)
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// parseValue reads an optional native amount; empty means none attached.
func parseValue(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return money.ParseWei(s)
}

// callFor builds the service call for the authenticated caller.
func callFor(c *fiber.Ctx, value *big.Int) services.Call {
	return services.Call{From: middleware.GetCaller(c), Value: value}
}

// paymentCall parses an optional PaymentRequest body into a call.
func paymentCall(c *fiber.Ctx) (services.Call, error) {
	var req dto.PaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return services.Call{}, fmt.Errorf("%w: invalid request body", models.ErrInvalidArgument)
		}
	}
	value, err := parseValue(req.Value)
	if err != nil {
		return services.Call{}, err
	}
	return callFor(c, value), nil
}

func amountResponse(v *big.Int) dto.AmountResponse {
	return dto.AmountResponse{Amount: money.FormatNative(v), AmountWei: v.String()}
}
