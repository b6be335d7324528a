package repositories

import (
	"context"
	"errors"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const orderLineBatchSize = 100

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create implements OrderRepository. A clash on (user_id, idempotency_key)
// yields apperrors.ErrDuplicate.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	db := r.db.WithContext(ctx)
	if err := db.Omit("Lines").Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return apperrors.Internal("failed to create order", err)
	}

	if len(order.Lines) == 0 {
		return nil
	}
	for i := range order.Lines {
		if order.Lines[i].ID == "" {
			order.Lines[i].ID = uuid.New().String()
		}
		order.Lines[i].OrderID = order.ID
	}
	if err := db.CreateInBatches(&order.Lines, orderLineBatchSize).Error; err != nil {
		return apperrors.Internal("failed to create order lines", err)
	}
	return nil
}

// ListByUser returns the user's orders with their lines, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLinesOrder).
		Where("user_id = ?", userID).
		Order("created_at DESC, id").
		Find(&orders).Error
	if err != nil {
		return nil, apperrors.Internal("failed to list orders", err)
	}
	return orders, nil
}

// GetByID retrieves one of the user's orders with its lines.
func (r *GORMOrderRepository) GetByID(ctx context.Context, userID, id string) (*models.Order, error) {
	return r.first(ctx, id, "id = ? AND user_id = ?", id, userID)
}

// GetByIdempotencyKey retrieves the order a previous checkout stored under key.
func (r *GORMOrderRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	return r.first(ctx, key, "user_id = ? AND idempotency_key = ?", userID, key)
}

func (r *GORMOrderRepository) first(ctx context.Context, ref string, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines", orderLinesOrder).
		Where(query, args...).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", ref)
		}
		return nil, apperrors.Internal("failed to get order "+ref, err)
	}
	return &order, nil
}

func orderLinesOrder(db *gorm.DB) *gorm.DB {
	return db.Order("product_id")
}
