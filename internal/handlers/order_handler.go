package handlers

import (
	"tokocart/internal/middleware"
	"tokocart/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HeaderIdempotencyKey lets clients retry a checkout without buying twice.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 100

// OrderHandler handles checkout and order history requests.
type OrderHandler struct {
	service *services.CheckoutService
	log     *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.CheckoutService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers the checkout and order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/checkout", h.HandleCheckout)

	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
}

// HandleCheckout turns the caller's cart into an order.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	key := c.Get(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Idempotency-Key is too long",
		})
	}

	order, err := h.service.Checkout(c.UserContext(), middleware.UserID(c), services.CheckoutOptions{IdempotencyKey: key})
	if err != nil {
		return respondError(c, h.log, "Checkout failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Order created",
		"data":    order,
	})
}

// HandleGetOrders returns the caller's orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve orders", err)
	}
	return c.JSON(fiber.Map{"data": orders})
}

// HandleGetOrderByID returns one of the caller's orders.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve order", err)
	}
	return c.JSON(order)
}
