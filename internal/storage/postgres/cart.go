package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatolabs/checkout/internal/domain/cart"
)

const removeCartItemsSQL = `DELETE FROM cart_items
	WHERE user_id = $1 AND product_id = ANY($2)`

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// RemoveItems deletes only the given product rows from the user's cart.
// Items added to the cart while checkout was in flight are untouched.
func (r *CartRepository) RemoveItems(ctx context.Context, userID string, productIDs []string) error {
	_, err := r.pool.Exec(ctx, removeCartItemsSQL, userID, productIDs)
	if err != nil {
		return fmt.Errorf("clearing cart items for user %q: %w", userID, err)
	}
	return nil
}
