package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator prices a coupon code against a pre-discount order amount.
// Validation is side-effect-free: it never touches the usage counter.
type Validator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (*Discount, error)
}

// Redeemer credits a coupon use after an order referencing it has been
// durably committed.
type Redeemer interface {
	Redeem(ctx context.Context, code string) (bool, error)
}

// Ledger implements Validator and Redeemer on top of a Repository.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks activity,
// expiry, usage limit and minimum order amount, and computes the discount.
// The usage counter is not modified; Redeem does that after order commit.
func (l *Ledger) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (*Discount, error) {
	rule, err := l.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if rule.ValidUntil != nil && l.now().After(*rule.ValidUntil) {
		return nil, ErrExpired
	}
	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return nil, ErrLimitReached
	}
	if orderAmount.LessThan(rule.MinOrderAmount) {
		return nil, ErrBelowMinimum
	}

	d, err := Apply(rule, orderAmount)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem increments the coupon's usage counter. The repository performs a
// single conditional update, so two checkouts racing for the last unit of a
// limited coupon cannot both be credited. A false result means the race was
// lost after the order was already committed; callers log it and move on.
func (l *Ledger) Redeem(ctx context.Context, code string) (bool, error) {
	ok, err := l.repo.Redeem(ctx, NormalizeCode(code))
	if err != nil {
		return false, errors.Wrap(err, "redeem coupon")
	}
	return ok, nil
}
