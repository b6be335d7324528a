package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokocart/internal/apperrors"
	"tokocart/internal/cache"
	"tokocart/internal/models"
	"tokocart/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const listLoadTimeout = 10 * time.Second

// CartService handles business logic related to user carts. Adding a
// product sets the line's quantity; it never increments it.
type CartService struct {
	store repositories.Store
	cache cache.CartCache
	log   *zap.Logger
	sfg   singleflight.Group
}

// NewCartService creates a new CartService. A nil cache disables caching.
func NewCartService(store repositories.Store, c cache.CartCache, log *zap.Logger) *CartService {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{
		store: store,
		cache: c,
		log:   log,
	}
}

// AddOrUpdate sets the quantity of productID in the user's cart, creating
// the line when it does not exist yet.
func (s *CartService) AddOrUpdate(ctx context.Context, userID, productID string, quantity int) (*models.CartLine, error) {
	lines, err := s.AddOrUpdateBatch(ctx, userID, []models.CartItem{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return nil, err
	}
	return &lines[0], nil
}

// AddOrUpdateBatch applies AddOrUpdate to every item as one all-or-nothing
// unit. When a product appears more than once the last quantity wins. The
// returned lines follow the order in which products first appear in items.
func (s *CartService) AddOrUpdateBatch(ctx context.Context, userID string, items []models.CartItem) ([]models.CartLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no cart items given", apperrors.ErrInvalidInput)
	}
	merged := make([]models.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %q quantity %d", apperrors.ErrInvalidInput, it.ProductID, it.Quantity)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity = it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}

	var result []models.CartLine
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		ids := make([]string, len(merged))
		for i, it := range merged {
			ids[i] = it.ProductID
		}
		products, err := tx.Products().GetByIDs(ctx, ids)
		if err != nil {
			return err
		}

		lines := make([]models.CartLine, len(merged))
		for i, it := range merged {
			p, ok := products[it.ProductID]
			if !ok {
				return apperrors.NotFound("product", it.ProductID)
			}
			if it.Quantity > p.Stock {
				return &apperrors.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   it.Quantity,
					Available:   p.Stock,
				}
			}
			lines[i] = models.CartLine{UserID: userID, ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if err := tx.Carts().UpsertMany(ctx, lines); err != nil {
			return err
		}

		stored, err := tx.Carts().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		byProduct := make(map[string]models.CartLine, len(stored))
		for _, l := range stored {
			byProduct[l.ProductID] = l
		}
		result = make([]models.CartLine, len(merged))
		for i, it := range merged {
			result[i] = byProduct[it.ProductID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return result, nil
}

// List returns the user's cart lines with their current products. An empty
// cart is an empty slice. Concurrent calls for one user share a single load,
// which is not cancelled when the caller that started it goes away.
func (s *CartService) List(ctx context.Context, userID string) ([]models.CartLine, error) {
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listLoadTimeout)
		defer cancel()
		return s.load(loadCtx, userID)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	lines, _ := res.Val.([]models.CartLine)
	if lines == nil {
		lines = []models.CartLine{}
	}
	return lines, nil
}

// load reads the line rows from the cache, falling back to the store, and
// joins the products fresh on every call.
func (s *CartService) load(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines, err := s.cache.Get(ctx, userID)
	if err == nil {
		return s.joinProducts(ctx, lines)
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("cart cache get failed", zap.String("user_id", userID), zap.Error(err))
	}

	// the version is read before the store so a write in between wins
	version, verr := s.cache.Version(ctx, userID)
	lines, err = s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		s.log.Warn("cart cache version failed", zap.String("user_id", userID), zap.Error(verr))
		return lines, nil
	}
	if err := s.cache.Set(ctx, userID, version, lines); err != nil {
		s.log.Warn("cart cache set failed", zap.String("user_id", userID), zap.Error(err))
	}
	return lines, nil
}

func (s *CartService) joinProducts(ctx context.Context, lines []models.CartLine) ([]models.CartLine, error) {
	if len(lines) == 0 {
		return lines, nil
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if p, ok := products[lines[i].ProductID]; ok {
			lines[i].Product = &p
		}
	}
	return lines, nil
}

// Get returns one of the user's cart lines.
func (s *CartService) Get(ctx context.Context, userID, lineID string) (*models.CartLine, error) {
	return s.store.Carts().GetByID(ctx, userID, lineID)
}

// UpdateQuantity sets the quantity of an existing line. The line stays
// locked while stock is checked and the new quantity written, so it cannot
// interleave with a checkout of the same cart.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (*models.CartLine, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", apperrors.ErrInvalidInput, quantity)
	}

	var updated *models.CartLine
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		line, err := tx.Carts().GetByIDForUpdate(ctx, userID, lineID)
		if err != nil {
			return err
		}
		product, err := tx.Products().GetByID(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if quantity > product.Stock {
			return &apperrors.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   quantity,
				Available:   product.Stock,
			}
		}
		if err := tx.Carts().UpdateQuantity(ctx, userID, lineID, quantity); err != nil {
			return err
		}
		line.Quantity = quantity
		line.Product = product
		updated = line
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return updated, nil
}

// Remove deletes one of the user's cart lines.
func (s *CartService) Remove(ctx context.Context, userID, lineID string) error {
	if err := s.store.Carts().Delete(ctx, userID, lineID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("failed to invalidate cart cache", zap.String("user_id", userID), zap.Error(err))
	}
}
