package database_test

import (
	"context"
	"testing"

	"tokocart/internal/database"
	"tokocart/internal/database/dbtest"
	"tokocart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := database.Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := database.Dialector("oracle", "dsn")
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := dbtest.Open(t)

	for _, table := range []interface{}{&models.User{}, &models.Product{}, &models.CartLine{}, &models.Order{}, &models.OrderLine{}} {
		assert.True(t, db.Migrator().HasTable(table))
	}
	assert.True(t, db.Migrator().HasIndex(&models.CartLine{}, "idx_cart_user_product"))
	assert.True(t, db.Migrator().HasIndex(&models.Order{}, "idx_orders_user_idempotency"))
}

func TestOpen_StockCheckConstraint(t *testing.T) {
	db := dbtest.Open(t)

	p := models.Product{ID: uuid.New().String(), Name: "Negative", Price: decimal.NewFromInt(1), Stock: -1}
	assert.Error(t, db.Create(&p).Error)
}

func TestSeed_Idempotent(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	require.NoError(t, database.Seed(ctx, db))

	var apple models.Product
	require.NoError(t, db.First(&apple, "name = ?", "Apple").Error)
	require.NoError(t, db.Model(&apple).Update("stock", 42).Error)

	require.NoError(t, database.Seed(ctx, db))

	var products, users int64
	require.NoError(t, db.Model(&models.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 5, products)
	assert.EqualValues(t, 2, users)

	require.NoError(t, db.First(&apple, "name = ?", "Apple").Error)
	assert.Equal(t, 42, apple.Stock, "reseeding must not reset stock")
	assert.True(t, decimal.NewFromInt(1000).Equal(apple.Price))
}
