package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string          `json:"name" gorm:"type:varchar(100);uniqueIndex;not null" validate:"required,min=3,max=100"`
	Description string          `json:"description" gorm:"type:varchar(500)" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:chk_products_stock,stock >= 0" validate:"gte=0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
