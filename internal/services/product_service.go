package services

import (
	"context"
	"fmt"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"
	"tokocart/internal/repositories"
)

// ProductService handles business logic related to products. The catalog is
// read-only over HTTP; stock only changes through checkout.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct adds a product to the catalog.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", apperrors.ErrInvalidInput)
	}
	if product.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", apperrors.ErrInvalidInput)
	}
	return s.repo.Create(ctx, product)
}
