package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for any authentication failure. The cause is
// deliberately not distinguished to the caller.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo holds the identity data for a validated API key. Every key is
// bound to the user it acts for; the verified user id is what the checkout
// core trusts.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Scopes  []string
}

// Repository provides lookup of active API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
