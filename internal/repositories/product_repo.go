package repositories

import (
	"context"

	"tokocart/internal/models"
)

// ProductRepository defines the interface for product data access. Stock is
// only ever mutated through Decrement, inside a checkout transaction that
// already holds the row locks from GetForUpdate.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Product, error)
	Create(ctx context.Context, product *models.Product) error

	// GetForUpdate locks the rows of ids in increasing id order and returns them.
	GetForUpdate(ctx context.Context, ids []string) (map[string]models.Product, error)
	// Decrement lowers stock by amount, refusing to go below zero.
	Decrement(ctx context.Context, id string, amount int) error
}
