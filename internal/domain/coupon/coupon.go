package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order subtotal,
	// optionally capped at the rule's MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a coupon code does not exist or is inactive.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon is past its valid_until timestamp.
	ErrExpired = errors.New("coupon expired")
	// ErrLimitReached is returned when a coupon has exhausted its usage limit.
	ErrLimitReached = errors.New("coupon usage limit reached")
	// ErrBelowMinimum is returned when the order amount does not meet the
	// coupon's minimum order amount.
	ErrBelowMinimum = errors.New("order amount below coupon minimum")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
// UsageLimit of zero means unlimited; MaxDiscount of zero means uncapped.
type Rule struct {
	Code           string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    decimal.Decimal
	UsageLimit     int
	UsedCount      int
	ValidUntil     *time.Time
	Description    string
	Active         bool
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and redemption of coupon rules.
type Repository interface {
	// FindByCode looks up an active coupon by normalized code.
	// Returns ErrNotFound when no matching active coupon exists.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Redeem increments the coupon's used_count with a single conditional
	// update. It returns false without error when the increment lost the
	// race for the last remaining use.
	Redeem(ctx context.Context, code string) (bool, error)
}

// NormalizeCode upper-cases and trims a coupon code. Codes are stored and
// compared in this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
