// Package notify defines the outbound notification boundary. Delivery
// providers (email, SMS) live behind the Gateway interface; the core only
// ever dispatches fire-and-forget.
package notify

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Line is one order line in a confirmation message.
type Line struct {
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// OrderConfirmation is the payload for a post-checkout confirmation.
type OrderConfirmation struct {
	Email   string
	Name    string
	OrderID string
	Total   decimal.Decimal
	Lines   []Line
}

// StatusChange is the payload for an order status change message.
type StatusChange struct {
	Email   string
	Name    string
	OrderID string
	Status  string
}

// Gateway delivers customer notifications. Implementations may block; the
// Dispatcher keeps them off the request path.
type Gateway interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error
	SendStatusChange(ctx context.Context, msg StatusChange) error
}

// Dispatcher sends notifications on a detached goroutine with its own error
// boundary. A slow or failing provider can never delay or fail the calling
// operation; failures are logged with enough context to reconcile manually.
type Dispatcher struct {
	gw      Gateway
	timeout time.Duration
}

// NewDispatcher wraps the gateway with fire-and-forget semantics.
func NewDispatcher(gw Gateway, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{gw: gw, timeout: timeout}
}

// OrderConfirmation dispatches a confirmation without waiting for delivery.
func (d *Dispatcher) OrderConfirmation(ctx context.Context, msg OrderConfirmation) {
	d.dispatch(ctx, "order confirmation", msg.OrderID, func(ctx context.Context) error {
		return d.gw.SendOrderConfirmation(ctx, msg)
	})
}

// StatusChange dispatches a status change message without waiting.
func (d *Dispatcher) StatusChange(ctx context.Context, msg StatusChange) {
	d.dispatch(ctx, "status change", msg.OrderID, func(ctx context.Context) error {
		return d.gw.SendStatusChange(ctx, msg)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, kind, orderID string, send func(context.Context) error) {
	// Detach from the request context so a client disconnect cannot cancel
	// delivery, but keep the context logger.
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				zctx.From(ctx).Error("notification panic",
					zap.String("kind", kind),
					zap.String("order_id", orderID),
					zap.Any("panic", rec),
				)
			}
		}()

		if err := send(ctx); err != nil {
			zctx.From(ctx).Warn("notification delivery failed",
				zap.String("kind", kind),
				zap.String("order_id", orderID),
				zap.Error(err),
			)
		}
	}()
}

// LogGateway is a Gateway that only logs. It is the default when no real
// provider is configured.
type LogGateway struct{}

func (LogGateway) SendOrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	zctx.From(ctx).Info("order confirmation",
		zap.String("order_id", msg.OrderID),
		zap.String("email", msg.Email),
		zap.String("total", msg.Total.StringFixed(2)),
		zap.Int("lines", len(msg.Lines)),
	)
	return nil
}

func (LogGateway) SendStatusChange(ctx context.Context, msg StatusChange) error {
	zctx.From(ctx).Info("order status change",
		zap.String("order_id", msg.OrderID),
		zap.String("email", msg.Email),
		zap.String("status", msg.Status),
	)
	return nil
}
