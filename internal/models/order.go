package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderLine is a frozen purchase record: quantity and prices as of checkout.
type OrderLine struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string          `json:"order_id" gorm:"type:varchar(36);not null;index"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null;index"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100);not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	LinePrice   decimal.Decimal `json:"line_price" gorm:"type:decimal(14,2);not null"` // UnitPrice * Quantity
	CreatedAt   time.Time       `json:"created_at"`
}

// Order represents a completed checkout. Orders are never updated.
type Order struct {
	ID             string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string          `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_orders_user_idempotency,priority:1"`
	IdempotencyKey *string         `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_orders_user_idempotency,priority:2"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2);not null"`
	Lines          []OrderLine     `json:"lines" gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time       `json:"created_at"`
}
