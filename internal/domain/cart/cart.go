// Package cart defines the slice of the cart subsystem the checkout core
// consumes. Cart contents arrive with the checkout request; the core only
// needs to clear the checked-out rows afterwards.
package cart

import "context"

// Repository removes checked-out items from a user's durable cart.
type Repository interface {
	// RemoveItems deletes exactly the given product rows from the user's
	// cart. Items added concurrently with checkout survive.
	RemoveItems(ctx context.Context, userID string, productIDs []string) error
}
