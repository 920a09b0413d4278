package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mercatolabs/checkout/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_order_amount, max_discount,
		usage_limit, used_count, valid_until, description, active
		FROM coupons WHERE code = UPPER($1) AND active = TRUE`

	// Conditional increment: the WHERE clause rejects the update when the
	// usage limit is already exhausted, so the limit can never be exceeded
	// regardless of how many checkouts race for the last unit.
	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND active = TRUE
		AND (usage_limit = 0 OR used_count < usage_limit)`

	upsertCouponSQL = `INSERT INTO coupons
		(code, discount_type, value, min_order_amount, max_discount, usage_limit, valid_until, description, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_order_amount = EXCLUDED.min_order_amount,
			max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit,
			valid_until = EXCLUDED.valid_until,
			description = EXCLUDED.description,
			active = EXCLUDED.active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Redeem increments the usage counter with a single conditional update.
// The affected-row count tells whether the redemption was credited or the
// limit race was lost.
func (r *CouponRepository) Redeem(ctx context.Context, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, redeemCouponSQL, code)
	if err != nil {
		return false, fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Upsert inserts or replaces a coupon rule. Used by the seed and ingest
// tools; the used counter is left untouched on update.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		coupon.NormalizeCode(rule.Code), string(rule.DiscountType), rule.Value,
		rule.MinOrderAmount, rule.MaxDiscount, int32(rule.UsageLimit),
		rule.ValidUntil, rule.Description, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		minAmount    decimal.Decimal
		maxDiscount  decimal.Decimal
		usageLimit   int32
		usedCount    int32
		validUntil   *time.Time
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &minAmount, &maxDiscount,
		&usageLimit, &usedCount, &validUntil, &rule.Description, &rule.Active,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.MinOrderAmount = minAmount
	rule.MaxDiscount = maxDiscount
	rule.UsageLimit = int(usageLimit)
	rule.UsedCount = int(usedCount)
	rule.ValidUntil = validUntil
	return rule, err
}
