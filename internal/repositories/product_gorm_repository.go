package repositories

import (
	"context"
	"errors"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// GetAll retrieves all products from the database.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, apperrors.Internal("failed to get all products", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, apperrors.Internal("failed to get product by ID "+id, err)
	}
	return &product, nil
}

// GetByIDs retrieves the products of ids keyed by id. Missing ids are absent
// from the map.
func (r *GORMProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Product, error) {
	var products []models.Product
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, apperrors.Internal("failed to get products", err)
		}
	}
	return keyByID(products), nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return apperrors.Internal("failed to create product", err)
	}
	return nil
}

// GetForUpdate implements ProductRepository. Rows are locked in the order the
// statement returns them, so ORDER BY id gives every transaction the same
// acquisition order. SQLite ignores the locking clause and serializes writers
// at BEGIN instead.
func (r *GORMProductRepository) GetForUpdate(ctx context.Context, ids []string) (map[string]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return map[string]models.Product{}, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, apperrors.Internal("failed to lock products", err)
	}
	return keyByID(products), nil
}

// Decrement implements ProductRepository. The WHERE guard keeps stock
// non-negative even if a caller skipped validation.
func (r *GORMProductRepository) Decrement(ctx context.Context, id string, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, amount).
		Update("stock", gorm.Expr("stock - ?", amount))
	if res.Error != nil {
		return apperrors.Internal("failed to decrement stock of product "+id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	product, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &apperrors.InsufficientStockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   amount,
		Available:   product.Stock,
	}
}

func keyByID(products []models.Product) map[string]models.Product {
	out := make(map[string]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out
}
