// Command seed-db prepares a database for local development: it runs the
// schema migrations, seeds a set of demo coupons, and registers an API key
// bound to a demo user.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mercatolabs/checkout/internal/domain/auth"
	"github.com/mercatolabs/checkout/internal/domain/coupon"
	"github.com/mercatolabs/checkout/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
		userID       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.StringVar(&userID, "user-id", "demo-user", "user id the seeded API key is bound to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper, userID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper, userID string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper, userID); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	expiring := time.Now().AddDate(0, 1, 0)
	rules := []coupon.Rule{
		{
			Code:         "SAVE10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "10% off your order",
			Active:       true,
		},
		{
			Code:           "FLAT100",
			DiscountType:   coupon.DiscountFixed,
			Value:          decimal.NewFromInt(100),
			MinOrderAmount: decimal.NewFromInt(500),
			Description:    "Rs 100 off orders over Rs 500",
			Active:         true,
		},
		{
			Code:         "MEGA50",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(50),
			MaxDiscount:  decimal.NewFromInt(200),
			UsageLimit:   100,
			ValidUntil:   &expiring,
			Description:  "50% off up to Rs 200, first 100 orders",
			Active:       true,
		},
	}

	for i := range rules {
		if err := repo.Upsert(ctx, &rules[i]); err != nil {
			return err
		}
		slog.Info("upserted coupon",
			slog.String("code", rules[i].Code),
			slog.String("description", rules[i].Description),
		)
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper, userID string) error {
	slog.Info("seeding default API key", slog.String("user_id", userID))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))

	return repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: hex.EncodeToString(mac.Sum(nil)),
		UserID:  userID,
		Name:    "Default test key",
		Scopes:  []string{"place_order"},
	})
}
