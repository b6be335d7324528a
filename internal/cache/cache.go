// Package cache holds the read-through display cache of user carts. It is
// never consulted by checkout, which always reads the database under lock.
package cache

import (
	"context"
	"errors"

	"tokocart/internal/models"
)

// ErrCacheMiss is returned by Get when nothing is cached for the user.
var ErrCacheMiss = errors.New("cache miss")

// CartCache stores the line rows of a user's cart. Products are not cached;
// callers join them on every read.
type CartCache interface {
	Get(ctx context.Context, userID string) ([]models.CartLine, error)
	// Version returns the invalidation counter of the user's cart. Read it
	// before loading the cart and hand it to Set.
	Version(ctx context.Context, userID string) (int64, error)
	// Set stores lines unless the cart was invalidated after version was read.
	Set(ctx context.Context, userID string, version int64, lines []models.CartLine) error
	// Delete drops the cached cart and bumps its version.
	Delete(ctx context.Context, userID string) error
}

// NopCache caches nothing. It is used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]models.CartLine, error)      { return nil, ErrCacheMiss }
func (NopCache) Version(context.Context, string) (int64, error)             { return 0, nil }
func (NopCache) Set(context.Context, string, int64, []models.CartLine) error { return nil }
func (NopCache) Delete(context.Context, string) error                        { return nil }
