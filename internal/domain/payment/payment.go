package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercatolabs/checkout/internal/domain/order"
)

// Status enumerates the terminal outcomes recorded for a payment attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrSignatureMismatch is returned when a gateway callback carries a
// signature that does not match the expected HMAC. It is expected traffic
// (tampering or misconfigured client), not a system fault.
var ErrSignatureMismatch = errors.New("payment signature mismatch")

// Payment records the outcome of a gateway transaction for an order.
// At most one completed payment exists per order.
type Payment struct {
	ID               string
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Status           Status
	Amount           decimal.Decimal
	Currency         string
	CreatedAt        time.Time
}

// Repository defines persistence operations for payment reconciliation.
type Repository interface {
	// ApplyCompleted atomically inserts the payment record, sets the order's
	// payment status to completed, and stores the gateway identifiers on the
	// order. Safe to retry: when a completed payment for the order already
	// exists, nothing changes and that stored row is returned instead of p.
	ApplyCompleted(ctx context.Context, p *Payment) (*Payment, error)
	// MarkOrderFailed sets the order's payment status to failed unless the
	// order has already completed payment. The order status is untouched.
	MarkOrderFailed(ctx context.Context, orderID string) error
}

var _ order.IntentCreator = LocalIntents{}

// LocalIntents issues locally generated intent ids. It stands in for a live
// gateway in development and test environments.
type LocalIntents struct{}

func (LocalIntents) CreateIntent(_ context.Context, _ string, _ decimal.Decimal, _ string) (string, error) {
	return "intent_" + uuid.New().String(), nil
}
