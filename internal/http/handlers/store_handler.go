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

type StoreHandler struct {
	factory *services.StoreFactoryService
	log     *zap.Logger
}

func NewStoreHandler(factory *services.StoreFactoryService, log *zap.Logger) *StoreHandler {
	return &StoreHandler{factory: factory, log: log}
}

// store resolves the :store route param.
func (h *StoreHandler) store(c *fiber.Ctx) (*services.Store, error) {
	addr, valid := parseAddress(c.Params("store"))
	if !valid {
		return nil, models.ErrNotFound
	}
	return h.factory.GetStore(c.Context(), addr)
}

func (h *StoreHandler) CreateStore(c *fiber.Ctx) error {
	var req dto.CreateStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	value, err := parseValue(req.Value)
	if err != nil {
		return respondError(c, err)
	}

	s, err := h.factory.CreateStore(c.Context(), callFor(c, value), req.Metadata)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, s.Info())
}

func (h *StoreHandler) ListStores(c *fiber.Ctx) error {
	return ok(c, h.factory.ListStores(c.Context()))
}

func (h *StoreHandler) GetStore(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, s.Info())
}

// CreationFee quotes the native amount CreateStore currently requires.
func (h *StoreHandler) CreationFee(c *fiber.Ctx) error {
	fee, err := h.factory.CreationFee(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, amountResponse(fee))
}

func (h *StoreHandler) AddProduct(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.AddProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	price, err := money.ParseUSD(req.PriceUSD)
	if err != nil {
		return respondError(c, err)
	}

	p, err := s.AddProduct(c.Context(), callFor(c, nil), req.Title, req.Description, req.Image, price, req.Quantity, req.Kind)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, p)
}

func (h *StoreHandler) ListProducts(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, s.ListStoreProducts(c.Context()))
}

func (h *StoreHandler) GetProduct(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid product id")
	}
	p, err := s.GetProduct(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, p)
}

func (h *StoreHandler) RemoveProduct(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid product id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.RemoveProduct(c.Context(), call, id); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

func (h *StoreHandler) ListReviews(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid product id")
	}
	reviews, err := s.ListProductReviews(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, reviews)
}

func (h *StoreHandler) CreateOrder(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	value, err := parseValue(req.Value)
	if err != nil {
		return respondError(c, err)
	}

	o, err := s.CreateBuyOrder(c.Context(), callFor(c, value), req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, o)
}

func (h *StoreHandler) ListOrders(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, s.ListStoreOrders(c.Context()))
}

func (h *StoreHandler) GetOrder(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	o, err := s.GetOrder(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, o)
}

func (h *StoreHandler) FillOrder(c *fiber.Ctx) error {
	return h.orderAction(c, (*services.Store).FillOrder)
}

func (h *StoreHandler) CancelOrder(c *fiber.Ctx) error {
	return h.orderAction(c, (*services.Store).CancelOrder)
}

func (h *StoreHandler) ConfirmReceived(c *fiber.Ctx) error {
	return h.orderAction(c, (*services.Store).ConfirmReceived)
}

func (h *StoreHandler) LeaveReview(c *fiber.Ctx) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	var req dto.LeaveReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	r, err := s.LeaveReview(c.Context(), callFor(c, nil), id, req.Rating, req.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, r)
}

type orderAction func(*services.Store, context.Context, services.Call, uint64) (*models.Order, error)

func (h *StoreHandler) orderAction(c *fiber.Ctx, fn orderAction) error {
	s, err := h.store(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "invalid order id")
	}
	call, err := paymentCall(c)
	if err != nil {
		return respondError(c, err)
	}
	o, err := fn(s, c.Context(), call, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, o)
}
