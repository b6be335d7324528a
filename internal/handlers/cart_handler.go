package handlers

import (
	"tokocart/internal/middleware"
	"tokocart/internal/models"
	"tokocart/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CartHandler handles HTTP requests for the caller's cart.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	log      *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, validate *validator.Validate, log *zap.Logger) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validate,
		log:      log,
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/carts")
	cartRoutes.Get("/", h.HandleListCart)
	cartRoutes.Post("/", h.HandleAddToCart)
	cartRoutes.Get("/:id", h.HandleGetCartLine)
	cartRoutes.Put("/:id", h.HandleUpdateCartLine)
	cartRoutes.Delete("/:id", h.HandleRemoveCartLine)
}

// AddToCartRequest is either a single item or, when Data is set, a batch
// that is applied all-or-nothing.
type AddToCartRequest struct {
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Data      []models.CartItem `json:"data" validate:"omitempty,max=100,dive"`
}

// UpdateCartLineRequest represents the request body for a quantity change.
type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// HandleListCart returns the caller's cart lines with their products.
func (h *CartHandler) HandleListCart(c *fiber.Ctx) error {
	lines, err := h.service.List(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve cart", err)
	}
	return c.JSON(fiber.Map{"data": lines})
}

// HandleAddToCart sets the quantity of one or more products in the cart.
func (h *CartHandler) HandleAddToCart(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	userID := middleware.UserID(c)

	if len(req.Data) > 0 {
		if err := h.validate.Struct(req); err != nil {
			return validationFailed(c, err)
		}
		lines, err := h.service.AddOrUpdateBatch(c.UserContext(), userID, req.Data)
		if err != nil {
			return respondError(c, h.log, "Could not update cart", err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Cart updated",
			"data":    lines,
		})
	}

	item := models.CartItem{ProductID: req.ProductID, Quantity: req.Quantity}
	if err := h.validate.Struct(item); err != nil {
		return validationFailed(c, err)
	}
	line, err := h.service.AddOrUpdate(c.UserContext(), userID, item.ProductID, item.Quantity)
	if err != nil {
		return respondError(c, h.log, "Could not update cart", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Cart updated",
		"data":    line,
	})
}

// HandleGetCartLine returns one of the caller's cart lines.
func (h *CartHandler) HandleGetCartLine(c *fiber.Ctx) error {
	line, err := h.service.Get(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, "Could not retrieve cart line", err)
	}
	return c.JSON(line)
}

// HandleUpdateCartLine changes the quantity of one of the caller's cart lines.
func (h *CartHandler) HandleUpdateCartLine(c *fiber.Ctx) error {
	var req UpdateCartLineRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	line, err := h.service.UpdateQuantity(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Quantity)
	if err != nil {
		return respondError(c, h.log, "Could not update cart line", err)
	}
	return c.JSON(line)
}

// HandleRemoveCartLine deletes one of the caller's cart lines.
func (h *CartHandler) HandleRemoveCartLine(c *fiber.Ctx) error {
	if err := h.service.Remove(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, h.log, "Could not remove cart line", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
