package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mercatolabs/checkout/internal/domain/order"
)

// Reconciler verifies gateway callbacks and applies their outcome to orders
// exactly once.
type Reconciler struct {
	secret   []byte
	orders   order.Repository
	payments Repository
}

// NewReconciler creates a Reconciler using the shared gateway secret.
func NewReconciler(secret []byte, orders order.Repository, payments Repository) *Reconciler {
	return &Reconciler{
		secret:   secret,
		orders:   orders,
		payments: payments,
	}
}

// VerifyRequest carries the fields of a gateway callback (or a client-relayed
// gateway result) for one order.
type VerifyRequest struct {
	UserID           string
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Sign computes the expected callback signature for the given gateway
// identifiers: hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
func Sign(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyAndApply authenticates the callback signature and transitions the
// order's payment state. A signature mismatch marks the order's payment as
// failed and returns ErrSignatureMismatch; the order status is not changed.
// A valid signature completes the payment idempotently: retried callbacks
// return the already stored completed payment instead of creating a second
// record.
func (r *Reconciler) VerifyAndApply(ctx context.Context, req VerifyRequest) (*Payment, error) {
	// Ownership check doubles as existence check; foreign orders are
	// indistinguishable from missing ones.
	o, err := r.orders.GetByID(ctx, req.UserID, req.OrderID)
	if err != nil {
		return nil, err
	}

	expected := Sign(r.secret, req.GatewayOrderID, req.GatewayPaymentID)
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		if err := r.payments.MarkOrderFailed(ctx, o.ID); err != nil {
			zctx.From(ctx).Error("mark payment failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
		return nil, ErrSignatureMismatch
	}

	p := &Payment{
		ID:               uuid.New().String(),
		OrderID:          o.ID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		Status:           StatusCompleted,
		Amount:           o.Total,
		Currency:         order.Currency,
	}
	stored, err := r.payments.ApplyCompleted(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "apply completed payment")
	}

	return stored, nil
}
