package repositories

import (
	"context"

	"tokocart/internal/models"
)

// OrderRepository defines the interface for order data access. Orders are
// append-only: there is no update or delete.
type OrderRepository interface {
	// Create inserts the order row and then all of its lines in one batch.
	Create(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, userID, id string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
}
