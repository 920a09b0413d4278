//go:build integration

package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
	"testing"
)

const (
	testAPIKey = "integration-test-key"

	// Must match CHECKOUT_GATEWAY_SECRET in docker-compose.test.yml.
	gatewaySecret = "integration-gateway-secret"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func testCheckout(couponCode, paymentMethod string) checkoutRequest {
	return checkoutRequest{
		ShippingAddress: addressRequest{
			Name:       "Asha Rao",
			Email:      "asha@example.com",
			Phone:      "9900112233",
			Line1:      "14 MG Road",
			City:       "Bengaluru",
			State:      "Karnataka",
			PostalCode: "560001",
		},
		PaymentMethod: paymentMethod,
		Items: []checkoutItemRequest{
			{ProductID: "p1", Title: "Widget", UnitPrice: 400, Quantity: 2},
			{ProductID: "p2", Title: "Gadget", UnitPrice: 400, Quantity: 1},
		},
		CouponCode: couponCode,
	}
}

func placeOrder(t *testing.T, req checkoutRequest) orderResponse {
	t.Helper()

	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestCheckout_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/checkout", testCheckout("", "cod"))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckout_InvalidKey(t *testing.T) {
	resp := doPostWithAuth(t, "/api/checkout", testCheckout("", "cod"), "wrong-key")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCheckout_EmptyItems(t *testing.T) {
	req := testCheckout("", "cod")
	req.Items = nil

	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_COD(t *testing.T) {
	order := placeOrder(t, testCheckout("", "cod"))

	if !uuidPattern.MatchString(order.ID) {
		t.Errorf("order ID %q is not a valid UUID", order.ID)
	}
	if order.OrderStatus != "pending" {
		t.Errorf("order_status: got %q, want pending", order.OrderStatus)
	}
	if order.PaymentStatus != "not_required" {
		t.Errorf("payment_status: got %q, want not_required", order.PaymentStatus)
	}
	if order.TotalAmount != 1200 {
		t.Errorf("total: got %v, want 1200", order.TotalAmount)
	}
}

func TestCheckout_WithCoupon(t *testing.T) {
	order := placeOrder(t, testCheckout("SAVE10", "upi"))

	// 1200 * 10% = 120 off
	if order.DiscountAmount != 120 {
		t.Errorf("discount: got %v, want 120", order.DiscountAmount)
	}
	if order.TotalAmount != 1080 {
		t.Errorf("total: got %v, want 1080", order.TotalAmount)
	}
	if order.CouponCode != "SAVE10" {
		t.Errorf("coupon_code: got %q, want SAVE10", order.CouponCode)
	}
	if order.PaymentStatus != "pending" {
		t.Errorf("payment_status: got %q, want pending", order.PaymentStatus)
	}
	if order.GatewayOrderID == "" {
		t.Error("gateway_order_id is empty for online payment")
	}
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	resp := doPostWithAuth(t, "/api/checkout", testCheckout("NONEXISTENT", "cod"), testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "coupon not found" {
		t.Errorf("message: got %q, want %q", body.Message, "coupon not found")
	}
}

func TestCheckout_CouponBelowMinimum(t *testing.T) {
	// FLAT100 requires a 500 minimum.
	req := testCheckout("FLAT100", "cod")
	req.Items = []checkoutItemRequest{{ProductID: "p1", Title: "Widget", UnitPrice: 100, Quantity: 1}}

	resp := doPostWithAuth(t, "/api/checkout", req, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestValidateCoupon(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupon/validate", map[string]any{
		"code":         "save10",
		"order_amount": 1000,
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateCouponResponse](t, resp)
	if !body.Valid {
		t.Fatalf("expected valid coupon, got reason %q", body.Reason)
	}
	if body.DiscountAmount != 100 {
		t.Errorf("discount: got %v, want 100", body.DiscountAmount)
	}
}

func TestValidateCoupon_Unknown(t *testing.T) {
	resp := doPostWithAuth(t, "/api/coupon/validate", map[string]any{
		"code":         "BOGUS",
		"order_amount": 1000,
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateCouponResponse](t, resp)
	if body.Valid {
		t.Fatal("expected invalid coupon")
	}
	if body.Reason != "coupon not found" {
		t.Errorf("reason: got %q, want %q", body.Reason, "coupon not found")
	}
}

func TestOrders_ListAndGet(t *testing.T) {
	placed := placeOrder(t, testCheckout("", "cod"))

	resp := doGetWithAuth(t, "/api/orders", testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[ordersListResponse](t, resp)
	found := false
	for _, o := range list.Orders {
		if o.ID == placed.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("placed order %s not in list", placed.ID)
	}

	getResp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", getResp.StatusCode)
	}
	got := decodeJSON[orderResponse](t, getResp)
	if got.TotalAmount != placed.TotalAmount {
		t.Errorf("total: got %v, want %v", got.TotalAmount, placed.TotalAmount)
	}
}

func TestOrders_GetUnknown(t *testing.T) {
	resp := doGetWithAuth(t, "/api/orders/00000000-0000-0000-0000-000000000000", testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrders_CancelPending(t *testing.T) {
	placed := placeOrder(t, testCheckout("", "cod"))

	resp := doPutWithAuth(t, "/api/orders/"+placed.ID+"/cancel", nil, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancelled := decodeJSON[orderResponse](t, resp)
	if cancelled.OrderStatus != "cancelled" {
		t.Errorf("order_status: got %q, want cancelled", cancelled.OrderStatus)
	}

	// A second cancel hits the cancelled state and conflicts.
	again := doPutWithAuth(t, "/api/orders/"+placed.ID+"/cancel", nil, testAPIKey)
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", again.StatusCode)
	}
}

func signCallback(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewaySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPayment_VerifyAndRetry(t *testing.T) {
	placed := placeOrder(t, testCheckout("", "upi"))

	body := map[string]any{
		"order_id":           placed.ID,
		"gateway_order_id":   placed.GatewayOrderID,
		"gateway_payment_id": "pay_integration_1",
		"signature":          signCallback(placed.GatewayOrderID, "pay_integration_1"),
	}

	resp := doPostWithAuth(t, "/api/payment/verify", body, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	verified := decodeJSON[verifyPaymentResponse](t, resp)
	if !verified.Verified {
		t.Fatal("expected verified=true")
	}
	if verified.Currency != "INR" {
		t.Errorf("currency: got %q, want INR", verified.Currency)
	}
	if verified.Amount != placed.TotalAmount {
		t.Errorf("amount: got %v, want %v", verified.Amount, placed.TotalAmount)
	}

	// Gateway retry must stay verified, keep a single completed payment, and
	// echo the same stored payment id.
	retry := doPostWithAuth(t, "/api/payment/verify", body, testAPIKey)
	defer retry.Body.Close()
	if retry.StatusCode != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", retry.StatusCode)
	}
	retried := decodeJSON[verifyPaymentResponse](t, retry)
	if retried.PaymentID != verified.PaymentID {
		t.Errorf("retry payment_id: got %q, want %q", retried.PaymentID, verified.PaymentID)
	}

	getResp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer getResp.Body.Close()
	order := decodeJSON[orderResponse](t, getResp)
	if order.PaymentStatus != "completed" {
		t.Errorf("payment_status: got %q, want completed", order.PaymentStatus)
	}
}

func TestPayment_TamperedSignature(t *testing.T) {
	placed := placeOrder(t, testCheckout("", "card"))

	resp := doPostWithAuth(t, "/api/payment/verify", map[string]any{
		"order_id":           placed.ID,
		"gateway_order_id":   placed.GatewayOrderID,
		"gateway_payment_id": "pay_integration_2",
		"signature":          "deadbeef",
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	getResp := doGetWithAuth(t, "/api/orders/"+placed.ID, testAPIKey)
	defer getResp.Body.Close()
	order := decodeJSON[orderResponse](t, getResp)
	if order.PaymentStatus != "failed" {
		t.Errorf("payment_status: got %q, want failed", order.PaymentStatus)
	}
}
