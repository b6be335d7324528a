package repositories

import (
	"context"

	"tokocart/internal/models"
)

// CartRepository defines the interface for cart line data access. Every
// method is scoped to one user; a line owned by someone else is reported as
// not found.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.CartLine, error)
	GetByID(ctx context.Context, userID, id string) (*models.CartLine, error)
	GetByProduct(ctx context.Context, userID, productID string) (*models.CartLine, error)

	// GetByIDForUpdate and LockByUser take row locks held until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, userID, id string) (*models.CartLine, error)
	LockByUser(ctx context.Context, userID string) ([]models.CartLine, error)

	// UpsertMany inserts lines, overwriting the quantity of any existing
	// (user, product) line. Product ids must be distinct.
	UpsertMany(ctx context.Context, lines []models.CartLine) error
	UpdateQuantity(ctx context.Context, userID, id string, quantity int) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
}
