package repositories

import (
	"context"
	"errors"
	"time"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// ListByUser returns the user's lines with their products, oldest first.
func (r *GORMCartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&lines).Error
	if err != nil {
		return nil, apperrors.Internal("failed to list cart", err)
	}
	return lines, nil
}

// GetByID retrieves one of the user's lines with its product.
func (r *GORMCartRepository) GetByID(ctx context.Context, userID, id string) (*models.CartLine, error) {
	return r.first(r.db.WithContext(ctx).Preload("Product"), id, "id = ? AND user_id = ?", id, userID)
}

// GetByProduct retrieves the user's line for productID with its product.
func (r *GORMCartRepository) GetByProduct(ctx context.Context, userID, productID string) (*models.CartLine, error) {
	return r.first(r.db.WithContext(ctx).Preload("Product"), productID, "user_id = ? AND product_id = ?", userID, productID)
}

// GetByIDForUpdate retrieves one of the user's lines and locks it.
func (r *GORMCartRepository) GetByIDForUpdate(ctx context.Context, userID, id string) (*models.CartLine, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id, "id = ? AND user_id = ?", id, userID)
}

// LockByUser locks and returns all of the user's lines ordered by product.
func (r *GORMCartRepository) LockByUser(ctx context.Context, userID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("product_id").
		Find(&lines).Error
	if err != nil {
		return nil, apperrors.Internal("failed to lock cart", err)
	}
	return lines, nil
}

// UpsertMany implements CartRepository with a single multi-row
// INSERT ... ON CONFLICT statement.
func (r *GORMCartRepository) UpsertMany(ctx context.Context, lines []models.CartLine) error {
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(&lines).Error
	if err != nil {
		return apperrors.Internal("failed to upsert cart lines", err)
	}
	return nil
}

// UpdateQuantity sets the quantity of one of the user's lines.
func (r *GORMCartRepository) UpdateQuantity(ctx context.Context, userID, id string, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now()})
	if res.Error != nil {
		return apperrors.Internal("failed to update cart line "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("cart line", id)
	}
	return nil
}

// Delete removes one of the user's lines.
func (r *GORMCartRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartLine{})
	if res.Error != nil {
		return apperrors.Internal("failed to delete cart line "+id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("cart line", id)
	}
	return nil
}

// DeleteByIDs removes the given lines of the user and reports how many went.
func (r *GORMCartRepository) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&models.CartLine{})
	if res.Error != nil {
		return 0, apperrors.Internal("failed to delete cart lines", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GORMCartRepository) first(q *gorm.DB, ref string, query string, args ...any) (*models.CartLine, error) {
	var line models.CartLine
	if err := q.Where(query, args...).First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("cart line", ref)
		}
		return nil, apperrors.Internal("failed to get cart line "+ref, err)
	}
	return &line, nil
}
