package repositories

import (
	"context"
	"fmt"
	"time"

	"tokocart/internal/database"

	"gorm.io/gorm"
)

// Store groups the repositories and runs them inside one transaction when asked.
type Store interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Users() UserRepository

	// Transaction runs fn with a Store whose repositories share a single
	// database transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the GORM implementation of Store.
type GORMStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewGORMStore creates a Store on db. lockTimeout bounds row-lock waits
// inside transactions; zero leaves the database default.
func NewGORMStore(db *gorm.DB, lockTimeout time.Duration) *GORMStore {
	return &GORMStore{db: db, lockTimeout: lockTimeout}
}

func (s *GORMStore) Products() ProductRepository { return NewGORMProductRepository(s.db) }
func (s *GORMStore) Carts() CartRepository       { return NewGORMCartRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository     { return NewGORMOrderRepository(s.db) }
func (s *GORMStore) Users() UserRepository       { return NewGORMUserRepository(s.db) }

// Transaction implements Store. A session-level lock timeout is reset
// before the transaction ends so it does not stick to the pooled connection.
func (s *GORMStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dialect := tx.Dialector.Name()
		if stmt := database.LockTimeoutStatement(dialect, s.lockTimeout); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		err := fn(&GORMStore{db: tx, lockTimeout: s.lockTimeout})

		if stmt := database.LockTimeoutResetStatement(dialect, s.lockTimeout); stmt != "" {
			if rerr := tx.Exec(stmt).Error; rerr != nil && err == nil {
				return fmt.Errorf("failed to reset lock timeout: %w", rerr)
			}
		}
		return err
	})
}
