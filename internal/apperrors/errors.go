package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds shared by repositories, services and handlers.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrConflict          = errors.New("checkout aborted after repeated conflicts")
	ErrInternal          = errors.New("internal error")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
)

// InsufficientStockError names the product whose stock cannot cover a request.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)", e.ProductID, e.Requested, e.Available)
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s with ID %s: %w", entity, id, ErrNotFound)
}

// Internal marks err as a store or connectivity failure, keeping the cause.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
