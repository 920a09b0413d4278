package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	MethodCOD  PaymentMethod = "cod"
	MethodUPI  PaymentMethod = "upi"
	MethodCard PaymentMethod = "card"
)

// Valid reports whether m is one of the accepted payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCOD, MethodUPI, MethodCard:
		return true
	}
	return false
}

// Online reports whether the method settles through the payment gateway.
func (m PaymentMethod) Online() bool {
	return m == MethodUPI || m == MethodCard
}

// PaymentStatus enumerates an order's payment lifecycle states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	// PaymentNotRequired marks cash-on-delivery orders, which are fulfilled
	// without online payment verification.
	PaymentNotRequired PaymentStatus = "not_required"
)

// ErrNotFound is returned when an order does not exist or belongs to a
// different user. The two cases are indistinguishable on purpose.
var ErrNotFound = errors.New("order not found")

// ShippingAddress is the address snapshot denormalized into the order at
// creation time. Later edits to the user's address book never alter it.
type ShippingAddress struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// Item is a line item snapshot captured at order time.
type Item struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal returns unit price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the durable record produced by checkout. It is created once,
// atomically with its items, and afterwards mutated only by status
// transitions. Orders are never deleted; cancellation is a status.
type Order struct {
	ID               string
	UserID           string
	Items            []Item
	Shipping         ShippingAddress
	PaymentMethod    PaymentMethod
	Total            decimal.Decimal
	DiscountAmount   decimal.Decimal
	CouponCode       string
	Status           Status
	PaymentStatus    PaymentStatus
	GatewayOrderID   string
	GatewayPaymentID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Subtotal returns the pre-discount sum over all line items.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order and all of its items as one atomic unit.
	Create(ctx context.Context, o *Order) error
	// GetByID loads an order with its items. Returns ErrNotFound when the
	// order does not exist or is owned by a different user.
	GetByID(ctx context.Context, userID, orderID string) (*Order, error)
	// ListByUser returns the user's orders, newest first, items included.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// TransitionStatus moves the order from one of the allowed states to the
	// target state with a single conditional update. It returns false when
	// the order was not in an allowed state (or does not belong to the user).
	TransitionStatus(ctx context.Context, userID, orderID string, from []Status, to Status) (bool, error)
}
