package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mercatolabs/checkout/internal/domain/cart"
	"github.com/mercatolabs/checkout/internal/domain/coupon"
	"github.com/mercatolabs/checkout/internal/notify"
)

// Currency is the settlement currency for all gateway payments.
const Currency = "INR"

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems           = errors.New("items required")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrZeroTotal            = errors.New("order total must be positive")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InvalidPriceError indicates a line item with a negative unit price.
type InvalidPriceError struct {
	ProductID string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("unit price must not be negative for product %s", e.ProductID)
}

// DuplicateItemError indicates two line items referencing the same product.
// Each product appears at most once per order; quantities express multiples.
type DuplicateItemError struct {
	ProductID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate line item for product %s", e.ProductID)
}

// MissingAddressFieldError indicates an incomplete shipping address.
type MissingAddressFieldError struct {
	Field string
}

func (e *MissingAddressFieldError) Error() string {
	return fmt.Sprintf("shipping address field %s is required", e.Field)
}

// Notifier dispatches customer notifications fire-and-forget.
type Notifier interface {
	OrderConfirmation(ctx context.Context, msg notify.OrderConfirmation)
	StatusChange(ctx context.Context, msg notify.StatusChange)
}

// IntentCreator creates a remote payment intent with the gateway for an
// online-payment order. The returned id is stored on the order and later
// matched against the gateway callback.
type IntentCreator interface {
	CreateIntent(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (string, error)
}

// PlaceOrderRequest holds the input for placing an order. Items carry the
// client's cart snapshot; they become the order's immutable line items.
type PlaceOrderRequest struct {
	UserID        string
	Shipping      ShippingAddress
	PaymentMethod PaymentMethod
	Items         []Item
	CouponCode    string
}

// Service coordinates cart-to-order conversion and order lifecycle
// operations for the owning user.
type Service struct {
	coupons  coupon.Validator
	redeemer coupon.Redeemer
	orders   Repository
	carts    cart.Repository
	intents  IntentCreator
	notifier Notifier
}

// NewService creates an order Service with the required collaborators.
func NewService(
	coupons coupon.Validator,
	redeemer coupon.Redeemer,
	orders Repository,
	carts cart.Repository,
	intents IntentCreator,
	notifier Notifier,
) *Service {
	return &Service{
		coupons:  coupons,
		redeemer: redeemer,
		orders:   orders,
		carts:    carts,
		intents:  intents,
		notifier: notifier,
	}
}

// PlaceOrder validates the request, prices an optional coupon against the
// pre-discount subtotal, persists the order and its items atomically, then
// runs the best-effort follow-ups: cart clear, coupon redemption, and the
// confirmation notification. Follow-up failures never fail the placed order;
// they are logged with enough context to reconcile manually.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, it := range req.Items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	if !subtotal.IsPositive() {
		return nil, ErrZeroTotal
	}

	// A bad coupon rejects the whole checkout; it is never silently ignored.
	discountAmount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		couponCode = coupon.NormalizeCode(req.CouponCode)
		discount, err := s.coupons.Validate(ctx, couponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discountAmount = discount.Amount
	}

	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Items:          req.Items,
		Shipping:       req.Shipping,
		PaymentMethod:  req.PaymentMethod,
		Total:          total.Round(2),
		DiscountAmount: discountAmount.Round(2),
		CouponCode:     couponCode,
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
	}
	if !req.PaymentMethod.Online() {
		o.PaymentStatus = PaymentNotRequired
	}

	if req.PaymentMethod.Online() {
		intentID, err := s.intents.CreateIntent(ctx, o.ID, o.Total, Currency)
		if err != nil {
			return nil, errors.Wrap(err, "create payment intent")
		}
		o.GatewayOrderID = intentID
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// From here on the order exists; nothing below may undo or fail it.
	s.runFollowUps(ctx, o)

	return o, nil
}

// runFollowUps clears the checked-out cart rows, credits the coupon, and
// dispatches the confirmation. All of it is best-effort.
func (s *Service) runFollowUps(ctx context.Context, o *Order) {
	lg := zctx.From(ctx).With(
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
	)

	productIDs := make([]string, len(o.Items))
	for i, it := range o.Items {
		productIDs[i] = it.ProductID
	}
	if err := s.carts.RemoveItems(ctx, o.UserID, productIDs); err != nil {
		lg.Warn("cart clear failed after order commit", zap.Error(err))
	}

	if o.CouponCode != "" {
		credited, err := s.redeemer.Redeem(ctx, o.CouponCode)
		switch {
		case err != nil:
			lg.Warn("coupon redemption failed after order commit",
				zap.String("coupon_code", o.CouponCode),
				zap.Error(err),
			)
		case !credited:
			lg.Warn("coupon redemption lost the usage limit race",
				zap.String("coupon_code", o.CouponCode),
			)
		}
	}

	lines := make([]notify.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = notify.Line{
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}
	s.notifier.OrderConfirmation(ctx, notify.OrderConfirmation{
		Email:   o.Shipping.Email,
		Name:    o.Shipping.Name,
		OrderID: o.ID,
		Total:   o.Total,
		Lines:   lines,
	})
}

// Get loads one of the user's orders with its items.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, userID, orderID)
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Cancel moves one of the user's orders to cancelled. Only pending and
// processing orders can be cancelled; shipped and delivered ones reject the
// request with InvalidTransitionError.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	ok, err := s.orders.TransitionStatus(ctx, userID, orderID, CancellableStates, StatusCancelled)
	if err != nil {
		return nil, errors.Wrap(err, "transition status")
	}
	if !ok {
		// The order moved out of a cancellable state between the read and
		// the conditional update.
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}
	o.Status = StatusCancelled

	s.notifier.StatusChange(ctx, notify.StatusChange{
		Email:   o.Shipping.Email,
		Name:    o.Shipping.Name,
		OrderID: o.ID,
		Status:  string(StatusCancelled),
	})

	return o, nil
}

func validateRequest(req *PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if !req.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if _, dup := seen[it.ProductID]; dup {
			return &DuplicateItemError{ProductID: it.ProductID}
		}
		seen[it.ProductID] = struct{}{}
		if it.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: it.ProductID}
		}
		if it.UnitPrice.IsNegative() {
			return &InvalidPriceError{ProductID: it.ProductID}
		}
	}

	addr := req.Shipping
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", addr.Name},
		{"email", addr.Email},
		{"phone", addr.Phone},
		{"line1", addr.Line1},
		{"city", addr.City},
		{"state", addr.State},
		{"postal_code", addr.PostalCode},
	} {
		if f.value == "" {
			return &MissingAddressFieldError{Field: f.name}
		}
	}

	return nil
}
