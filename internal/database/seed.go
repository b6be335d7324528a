package database

import (
	"context"
	"fmt"

	"tokocart/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sampleUser struct {
	name     string
	email    string
	password string
}

var sampleProducts = []struct {
	name  string
	price int64
	stock int
}{
	{"Apple", 1000, 100},
	{"Banana", 2000, 100},
	{"Cherry", 3000, 100},
	{"Mango", 4000, 100},
	{"Elderberry", 5000, 100},
}

var sampleUsers = []sampleUser{
	{"TestUser", "testuser31@gmail.com", "@TestUser_123"},
	{"AdminMarket", "admin1@market.com", "@dMIN_market"},
}

// Seed loads the sample catalog and users in one transaction. Existing
// products keep their stock and only get their price refreshed; existing
// users are left alone, so Seed can run on every start.
func Seed(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sp := range sampleProducts {
			p := models.Product{
				ID:    uuid.New().String(),
				Name:  sp.name,
				Price: decimal.NewFromInt(sp.price),
				Stock: sp.stock,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"price", "updated_at"}),
			}).Create(&p).Error
			if err != nil {
				return fmt.Errorf("failed to seed product %s: %w", sp.name, err)
			}
		}

		for _, su := range sampleUsers {
			hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password for %s: %w", su.email, err)
			}
			u := models.User{
				ID:       uuid.New().String(),
				Name:     su.name,
				Email:    su.email,
				Password: string(hash),
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoNothing: true,
			}).Create(&u).Error
			if err != nil {
				return fmt.Errorf("failed to seed user %s: %w", su.email, err)
			}
		}
		return nil
	})
}
