package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"tokocart/internal/apperrors"
	"tokocart/internal/cache"
	"tokocart/internal/database"
	"tokocart/internal/models"
	"tokocart/internal/repositories"
	"tokocart/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher receives committed orders. Publishing is best effort: a
// failure is logged and never undoes the order.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, evt rabbitmq.OrderCreated) error
}

// CheckoutConfig bounds the retry loop of Checkout.
type CheckoutConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// CheckoutOptions are the per-call options of Checkout.
type CheckoutOptions struct {
	// IdempotencyKey, when set, makes a repeated checkout with the same key
	// return the order created by the first one.
	IdempotencyKey string
}

// CheckoutService turns carts into orders and serves order history.
type CheckoutService struct {
	store       repositories.Store
	cache       cache.CartCache
	publisher   EventPublisher
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

// NewCheckoutService creates a new CheckoutService. publisher may be nil.
func NewCheckoutService(store repositories.Store, c cache.CartCache, publisher EventPublisher, cfg CheckoutConfig, log *zap.Logger) *CheckoutService {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &CheckoutService{
		store:       store,
		cache:       c,
		publisher:   publisher,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		log:         log,
	}
}

// Checkout converts the user's whole cart into an order in one transaction:
// product rows are locked in id order, every line is checked against the
// locked stock, then stock is decremented, the order and its lines are
// created and the cart lines are deleted. Attempts that lose a lock race are
// rolled back and retried; when the budget runs out the result is
// apperrors.ErrConflict.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, opts CheckoutOptions) (*models.Order, error) {
	if opts.IdempotencyKey != "" {
		if order, err := s.replay(ctx, userID, opts.IdempotencyKey); order != nil || err != nil {
			return order, err
		}
	}

	run := &checkoutRun{state: StateStarted, log: s.log.With(zap.String("user_id", userID))}
	for attempt := 1; ; attempt++ {
		run.attempt = attempt
		order, err := s.attempt(ctx, run, userID, opts)
		if err == nil {
			s.afterCommit(ctx, userID, order)
			return order, nil
		}

		if opts.IdempotencyKey != "" && (errors.Is(err, apperrors.ErrDuplicate) || errors.Is(err, apperrors.ErrEmptyCart)) {
			// a concurrent request with the same key may have committed first
			if order, rerr := s.replay(ctx, userID, opts.IdempotencyKey); order != nil || rerr != nil {
				return order, rerr
			}
		}
		if !database.IsRetryable(err) {
			return nil, err
		}
		if attempt >= s.maxAttempts {
			run.log.Error("checkout gave up after repeated conflicts",
				zap.Int("attempts", attempt), zap.Error(err))
			return nil, fmt.Errorf("%w (%d attempts)", apperrors.ErrConflict, attempt)
		}

		run.log.Warn("checkout conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if err := s.wait(ctx, attempt); err != nil {
			return nil, err
		}
		if err := run.transition(StateStarted); err != nil {
			return nil, err
		}
	}
}

func (s *CheckoutService) attempt(ctx context.Context, run *checkoutRun, userID string, opts CheckoutOptions) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := run.transition(StateValidating); err != nil {
			return err
		}
		lines, err := tx.Carts().LockByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperrors.ErrEmptyCart
		}
		slices.SortFunc(lines, func(a, b models.CartLine) int {
			return strings.Compare(a.ProductID, b.ProductID)
		})

		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		products, err := tx.Products().GetForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return apperrors.NotFound("product", l.ProductID)
			}
			if l.Quantity > p.Stock {
				return &apperrors.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   l.Quantity,
					Available:   p.Stock,
				}
			}
		}
		if err := run.transition(StateLocked); err != nil {
			return err
		}

		if err := run.transition(StateMutating); err != nil {
			return err
		}
		order = buildOrder(userID, opts.IdempotencyKey, lines, products)
		for _, l := range order.Lines {
			if err := tx.Products().Decrement(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		lineIDs := make([]string, len(lines))
		for i, l := range lines {
			lineIDs[i] = l.ID
		}
		deleted, err := tx.Carts().DeleteByIDs(ctx, userID, lineIDs)
		if err != nil {
			return err
		}
		if deleted != int64(len(lineIDs)) {
			return apperrors.Internal("clear cart", fmt.Errorf("deleted %d of %d cart lines", deleted, len(lineIDs)))
		}
		return nil
	})
	if err != nil {
		run.abort(err)
		return nil, err
	}
	if err := run.transition(StateCommitted); err != nil {
		return nil, err
	}
	return order, nil
}

// buildOrder freezes names and prices of the locked products into order lines.
func buildOrder(userID, idempotencyKey string, lines []models.CartLine, products map[string]models.Product) *models.Order {
	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		TotalAmount: decimal.Zero,
		Lines:       make([]models.OrderLine, 0, len(lines)),
	}
	if idempotencyKey != "" {
		order.IdempotencyKey = &idempotencyKey
	}
	for _, l := range lines {
		p := products[l.ProductID]
		linePrice := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		order.Lines = append(order.Lines, models.OrderLine{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
			LinePrice:   linePrice,
		})
		order.TotalAmount = order.TotalAmount.Add(linePrice)
	}
	return order
}

// replay returns the order stored under key, or nil when there is none.
func (s *CheckoutService) replay(ctx context.Context, userID, key string) (*models.Order, error) {
	order, err := s.store.Orders().GetByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("checkout replayed by idempotency key",
		zap.String("user_id", userID), zap.String("order_id", order.ID))
	return order, nil
}

func (s *CheckoutService) afterCommit(ctx context.Context, userID string, order *models.Order) {
	s.log.Info("order created",
		zap.String("user_id", userID),
		zap.String("order_id", order.ID),
		zap.String("total", order.TotalAmount.String()),
		zap.Int("lines", len(order.Lines)))

	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("failed to invalidate cart cache", zap.String("user_id", userID), zap.Error(err))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderCreated(ctx, orderCreatedEvent(order)); err != nil {
		s.log.Warn("failed to publish order event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func orderCreatedEvent(order *models.Order) rabbitmq.OrderCreated {
	evt := rabbitmq.OrderCreated{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		Lines:       make([]rabbitmq.OrderCreatedLine, len(order.Lines)),
	}
	for i, l := range order.Lines {
		evt.Lines[i] = rabbitmq.OrderCreatedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return evt
}

// wait sleeps base * 2^(attempt-1) plus up to half of that again.
func (s *CheckoutService) wait(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return ctx.Err()
	}
	exp := s.backoff * time.Duration(1<<(attempt-1))
	d := exp + rand.N(exp/2+1)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListOrders returns the user's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns one of the user's orders with its lines.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	return s.store.Orders().GetByID(ctx, userID, orderID)
}

// checkoutRun tracks the state of one Checkout call across its attempts.
type checkoutRun struct {
	state   CheckoutState
	attempt int
	log     *zap.Logger
}

func (r *checkoutRun) transition(to CheckoutState) error {
	if !CanTransition(r.state, to) {
		return &IllegalTransitionError{From: r.state, To: to}
	}
	r.log.Debug("checkout state",
		zap.Int("attempt", r.attempt),
		zap.Stringer("from", r.state),
		zap.Stringer("to", to))
	r.state = to
	return nil
}

func (r *checkoutRun) abort(cause error) {
	r.log.Debug("checkout aborted",
		zap.Int("attempt", r.attempt),
		zap.Stringer("from", r.state),
		zap.Error(cause))
	r.state = StateAborted
}
