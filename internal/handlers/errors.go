package handlers

import (
	"errors"
	"fmt"

	"tokocart/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondError maps err to a status code and writes the error envelope.
// Causes of 5xx responses are logged, not returned.
func respondError(c *fiber.Ctx, log *zap.Logger, message string, err error) error {
	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}

	var stockErr *apperrors.InsufficientStockError
	status := fiber.StatusInternalServerError
	switch {
	case errors.As(err, &stockErr):
		status = fiber.StatusUnprocessableEntity
		body["product_id"] = stockErr.ProductID
		body["requested"] = stockErr.Requested
		body["available"] = stockErr.Available
	case errors.Is(err, apperrors.ErrEmptyCart):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrDuplicate), errors.Is(err, apperrors.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	}

	if status >= fiber.StatusInternalServerError {
		log.Error(message,
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		body["error"] = "internal server error"
	}
	return c.Status(status).JSON(body)
}

// validationFailed writes the 400 envelope for a failed validator run.
func validationFailed(c *fiber.Ctx, err error) error {
	errorMessages := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	} else {
		errorMessages["body"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

func invalidBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}
