//go:build integration

package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tokocart/internal/apperrors"
	"tokocart/internal/config"
	"tokocart/internal/database"
	"tokocart/internal/models"
	"tokocart/internal/repositories"
	"tokocart/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newPostgresFixture runs the services against a real PostgreSQL so that
// SELECT ... FOR UPDATE and lock_timeout are exercised.
func newPostgresFixture(t *testing.T) *fixture {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("toko"),
		postgres.WithUsername("toko"),
		postgres.WithPassword("toko"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(&config.Config{
		DatabaseDriver: config.DriverPostgres,
		DatabaseDSN:    dsn,
		DBMaxOpenConns: 20,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := repositories.NewGORMStore(db, 2*time.Second)
	return &fixture{
		db:       db,
		store:    store,
		products: services.NewProductService(store.Products()),
		carts:    services.NewCartService(store, nil, nil),
		checkout: services.NewCheckoutService(store, nil, nil, services.CheckoutConfig{MaxAttempts: 5, RetryBackoff: 10 * time.Millisecond}, nil),
	}
}

func TestPostgres_OverlappingCheckouts(t *testing.T) {
	f := newPostgresFixture(t)
	ctx := context.Background()

	// every buyer wants both products, carted in opposite orders
	a := f.product(t, "A", 1000, 5)
	b := f.product(t, "B", 2000, 5)
	const buyers = 12
	users := make([]models.User, buyers)
	for i := range users {
		users[i] = f.user(t)
		items := []models.CartItem{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}}
		if i%2 == 1 {
			items[0], items[1] = items[1], items[0]
		}
		_, err := f.carts.AddOrUpdateBatch(ctx, users[i].ID, items)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.checkout.Checkout(ctx, users[i].ID, services.CheckoutOptions{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock) || errors.Is(err, apperrors.ErrConflict), "got %v", err)
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, f.stock(t, a.ID))
	assert.Equal(t, 0, f.stock(t, b.ID))
	assert.Equal(t, int64(5), f.orderCount(t))
}

func TestPostgres_StockCheckConstraint(t *testing.T) {
	f := newPostgresFixture(t)
	p := f.product(t, "A", 1000, 1)

	err := f.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", -1).Error
	assert.Error(t, err)
	assert.Equal(t, 1, f.stock(t, p.ID))
}
