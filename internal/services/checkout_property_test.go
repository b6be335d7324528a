package services_test

import (
	"context"
	"errors"
	"testing"

	"tokocart/internal/apperrors"
	"tokocart/internal/models"
	"tokocart/internal/services"

	"pgregory.net/rapid"
)

func TestCheckout_StockNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		initial := rapid.IntRange(0, 6).Draw(rt, "stock")
		p := f.product(rt, "P", 100, initial)
		buyers := rapid.IntRange(1, 4).Draw(rt, "buyers")

		sold := 0
		for i := 0; i < buyers; i++ {
			u := f.user(rt)
			qty := rapid.IntRange(1, 4).Draw(rt, "qty")
			// write the line directly: stock may have moved since it was carted
			line := []models.CartLine{{UserID: u.ID, ProductID: p.ID, Quantity: qty}}
			if err := f.store.Carts().UpsertMany(ctx, line); err != nil {
				rt.Fatalf("upsert: %v", err)
			}

			order, err := f.checkout.Checkout(ctx, u.ID, services.CheckoutOptions{})
			switch {
			case err == nil:
				sold += order.Lines[0].Quantity
			case errors.Is(err, apperrors.ErrInsufficientStock):
				if f.cartLen(rt, u.ID) != 1 {
					rt.Fatalf("rejected checkout removed cart lines")
				}
			default:
				rt.Fatalf("unexpected error: %v", err)
			}

			left := f.stock(rt, p.ID)
			if left < 0 {
				rt.Fatalf("stock went negative: %d", left)
			}
			if left != initial-sold {
				rt.Fatalf("stock %d, want %d", left, initial-sold)
			}
		}
	})
}
