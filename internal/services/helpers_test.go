package services_test

import (
	"context"
	"testing"

	"tokocart/internal/cache"
	"tokocart/internal/database/dbtest"
	"tokocart/internal/models"
	"tokocart/internal/repositories"
	"tokocart/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixture wires the services to a fresh SQLite database.
type fixture struct {
	db       *gorm.DB
	store    repositories.Store
	products *services.ProductService
	carts    *services.CartService
	checkout *services.CheckoutService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

func newFixtureWith(t *testing.T, c cache.CartCache, publisher services.EventPublisher) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store := repositories.NewGORMStore(db, 0)
	return &fixture{
		db:       db,
		store:    store,
		products: services.NewProductService(store.Products()),
		carts:    services.NewCartService(store, c, nil),
		checkout: services.NewCheckoutService(store, c, publisher, services.CheckoutConfig{MaxAttempts: 5}, nil),
	}
}

func (f *fixture) product(t require.TestingT, name string, price int64, stock int) models.Product {
	p := models.Product{Name: name + "-" + uuid.NewString()[:8], Price: decimal.NewFromInt(price), Stock: stock}
	require.NoError(t, f.products.CreateProduct(context.Background(), &p))
	return p
}

func (f *fixture) user(t require.TestingT) models.User {
	u := models.User{Name: "Buyer", Email: uuid.NewString() + "@example.com", Password: "hash"}
	require.NoError(t, f.store.Users().Create(context.Background(), &u))
	return u
}

func (f *fixture) stock(t require.TestingT, productID string) int {
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) orderCount(t require.TestingT) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) cartLen(t require.TestingT, userID string) int {
	lines, err := f.store.Carts().ListByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(lines)
}
