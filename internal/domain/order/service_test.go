package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercatolabs/checkout/internal/domain/coupon"
	"github.com/mercatolabs/checkout/internal/notify"
)

// --- Mock implementations ---

type mockValidator struct {
	discount *coupon.Discount
	err      error
	gotCode  string
}

func (m *mockValidator) Validate(_ context.Context, code string, _ decimal.Decimal) (*coupon.Discount, error) {
	m.gotCode = code
	return m.discount, m.err
}

type mockRedeemer struct {
	ok      bool
	err     error
	gotCode string
}

func (m *mockRedeemer) Redeem(_ context.Context, code string) (bool, error) {
	m.gotCode = code
	return m.ok, m.err
}

type mockOrderRepo struct {
	created      *Order
	createErr    error
	byID         *Order
	getErr       error
	transitionOK bool
	transitionTo Status
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, _, _ string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byID, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) TransitionStatus(_ context.Context, _, _ string, _ []Status, to Status) (bool, error) {
	m.transitionTo = to
	return m.transitionOK, nil
}

type mockCartRepo struct {
	userID     string
	productIDs []string
	err        error
}

func (m *mockCartRepo) RemoveItems(_ context.Context, userID string, productIDs []string) error {
	m.userID = userID
	m.productIDs = productIDs
	return m.err
}

type mockIntents struct {
	id  string
	err error
}

func (m *mockIntents) CreateIntent(_ context.Context, _ string, _ decimal.Decimal, _ string) (string, error) {
	return m.id, m.err
}

type mockNotifier struct {
	confirmations []notify.OrderConfirmation
	statusChanges []notify.StatusChange
}

func (m *mockNotifier) OrderConfirmation(_ context.Context, msg notify.OrderConfirmation) {
	m.confirmations = append(m.confirmations, msg)
}

func (m *mockNotifier) StatusChange(_ context.Context, msg notify.StatusChange) {
	m.statusChanges = append(m.statusChanges, msg)
}

// --- Helpers ---

type fixture struct {
	validator *mockValidator
	redeemer  *mockRedeemer
	orders    *mockOrderRepo
	carts     *mockCartRepo
	intents   *mockIntents
	notifier  *mockNotifier
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		validator: &mockValidator{},
		redeemer:  &mockRedeemer{ok: true},
		orders:    &mockOrderRepo{transitionOK: true},
		carts:     &mockCartRepo{},
		intents:   &mockIntents{id: "intent_123"},
		notifier:  &mockNotifier{},
	}
	f.svc = NewService(f.validator, f.redeemer, f.orders, f.carts, f.intents, f.notifier)
	return f
}

func testAddress() ShippingAddress {
	return ShippingAddress{
		Name:       "Asha Rao",
		Email:      "asha@example.com",
		Phone:      "9900112233",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
	}
}

func testItems() []Item {
	return []Item{
		{ProductID: "p1", Title: "Widget", UnitPrice: decimal.RequireFromString("400.00"), Quantity: 2},
		{ProductID: "p2", Title: "Gadget", UnitPrice: decimal.RequireFromString("400.00"), Quantity: 1},
	}
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
	})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         []Item{{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_NegativePrice(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         []Item{{ProductID: "p1", UnitPrice: decimal.NewFromInt(-1), Quantity: 1}},
	})

	var ipErr *InvalidPriceError
	require.ErrorAs(t, err, &ipErr)
	assert.Equal(t, "p1", ipErr.ProductID)
}

func TestPlaceOrder_DuplicateProductLine(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items: []Item{
			{ProductID: "p1", Title: "Widget", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
			{ProductID: "p1", Title: "Widget", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
		},
	})

	var diErr *DuplicateItemError
	require.ErrorAs(t, err, &diErr)
	assert.Equal(t, "p1", diErr.ProductID)
	assert.Nil(t, f.orders.created)
}

func TestPlaceOrder_InvalidPaymentMethod(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: PaymentMethod("wire"),
		Items:         testItems(),
	})
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestPlaceOrder_MissingAddressField(t *testing.T) {
	f := newFixture()
	addr := testAddress()
	addr.PostalCode = ""

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      addr,
		PaymentMethod: MethodCOD,
		Items:         testItems(),
	})

	var maErr *MissingAddressFieldError
	require.ErrorAs(t, err, &maErr)
	assert.Equal(t, "postal_code", maErr.Field)
}

func TestPlaceOrder_ZeroTotal(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         []Item{{ProductID: "p1", UnitPrice: decimal.Zero, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrZeroTotal)
}

func TestPlaceOrder_CODNoCoupon(t *testing.T) {
	f := newFixture()

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1200.00").Equal(o.Total))
	assert.True(t, o.DiscountAmount.IsZero())
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentNotRequired, o.PaymentStatus)
	assert.Empty(t, o.GatewayOrderID)
	require.NotNil(t, f.orders.created)

	// Totals invariant: total == subtotal - discount.
	assert.True(t, o.Total.Equal(o.Subtotal().Sub(o.DiscountAmount)))
}

func TestPlaceOrder_OnlineMethodCreatesIntent(t *testing.T) {
	f := newFixture()

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodUPI,
		Items:         testItems(),
	})

	require.NoError(t, err)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, "intent_123", o.GatewayOrderID)
}

func TestPlaceOrder_IntentFailureAbortsCheckout(t *testing.T) {
	f := newFixture()
	f.intents.err = errors.New("gateway down")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCard,
		Items:         testItems(),
	})

	require.Error(t, err)
	assert.Nil(t, f.orders.created)
}

func TestPlaceOrder_TenPercentCoupon(t *testing.T) {
	f := newFixture()
	f.validator.discount = &coupon.Discount{Amount: decimal.RequireFromString("120.00")}

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(), // subtotal 1200
		CouponCode:    "save10",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1080.00").Equal(o.Total))
	assert.True(t, decimal.RequireFromString("120.00").Equal(o.DiscountAmount))
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "SAVE10", f.redeemer.gotCode)
}

func TestPlaceOrder_CouponFailureRejectsCheckout(t *testing.T) {
	f := newFixture()
	f.validator.err = coupon.ErrLimitReached

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
		CouponCode:    "LIMITED",
	})

	require.ErrorIs(t, err, coupon.ErrLimitReached)
	assert.Nil(t, f.orders.created)
	assert.Empty(t, f.redeemer.gotCode)
}

func TestPlaceOrder_CreateErrorNoFollowUps(t *testing.T) {
	f := newFixture()
	f.orders.createErr = errors.New("db write failed")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Empty(t, f.carts.productIDs)
	assert.Empty(t, f.notifier.confirmations)
}

func TestPlaceOrder_ClearsExactlyCheckedOutItems(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
	})

	require.NoError(t, err)
	assert.Equal(t, "u1", f.carts.userID)
	assert.Equal(t, []string{"p1", "p2"}, f.carts.productIDs)
}

func TestPlaceOrder_FollowUpFailuresDoNotFailCheckout(t *testing.T) {
	f := newFixture()
	f.validator.discount = &coupon.Discount{Amount: decimal.NewFromInt(10)}
	f.carts.err = errors.New("cart table unavailable")
	f.redeemer.err = errors.New("coupon table unavailable")

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
		CouponCode:    "SAVE10",
	})

	require.NoError(t, err)
	require.NotNil(t, o)
	require.Len(t, f.notifier.confirmations, 1)
	assert.Equal(t, o.ID, f.notifier.confirmations[0].OrderID)
}

func TestPlaceOrder_ConfirmationPayload(t *testing.T) {
	f := newFixture()

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:        "u1",
		Shipping:      testAddress(),
		PaymentMethod: MethodCOD,
		Items:         testItems(),
	})

	require.NoError(t, err)
	require.Len(t, f.notifier.confirmations, 1)
	msg := f.notifier.confirmations[0]
	assert.Equal(t, "asha@example.com", msg.Email)
	assert.Equal(t, o.ID, msg.OrderID)
	assert.True(t, o.Total.Equal(msg.Total))
	assert.Len(t, msg.Lines, 2)
}

func TestCancel_PendingOrder(t *testing.T) {
	f := newFixture()
	f.orders.byID = &Order{
		ID:       "o1",
		UserID:   "u1",
		Status:   StatusPending,
		Shipping: testAddress(),
	}

	o, err := f.svc.Cancel(context.Background(), "u1", "o1")

	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, StatusCancelled, f.orders.transitionTo)
	require.Len(t, f.notifier.statusChanges, 1)
	assert.Equal(t, "o1", f.notifier.statusChanges[0].OrderID)
}

func TestCancel_ShippedOrderRejected(t *testing.T) {
	f := newFixture()
	f.orders.byID = &Order{ID: "o1", UserID: "u1", Status: StatusShipped}

	_, err := f.svc.Cancel(context.Background(), "u1", "o1")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusShipped, itErr.From)
	assert.Empty(t, f.notifier.statusChanges)
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture()
	f.orders.getErr = ErrNotFound

	_, err := f.svc.Cancel(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_LostRace(t *testing.T) {
	f := newFixture()
	f.orders.byID = &Order{ID: "o1", UserID: "u1", Status: StatusPending}
	f.orders.transitionOK = false

	_, err := f.svc.Cancel(context.Background(), "u1", "o1")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Empty(t, f.notifier.statusChanges)
}
