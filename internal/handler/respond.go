package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/mercatolabs/checkout/internal/domain/order"
)

// writeJSON flushes the encoder's buffer with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the {code, message} error body shared by all endpoints.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.StrEscape(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("order_status")
	e.Str(string(o.Status))
	e.FieldStart("payment_status")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("payment_method")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("total_amount")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("discount_amount")
	e.Float64(o.DiscountAmount.InexactFloat64())
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	if o.GatewayOrderID != "" {
		e.FieldStart("gateway_order_id")
		e.Str(o.GatewayOrderID)
	}

	e.FieldStart("shipping_address")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Shipping.Name)
	e.FieldStart("email")
	e.Str(o.Shipping.Email)
	e.FieldStart("phone")
	e.Str(o.Shipping.Phone)
	e.FieldStart("line1")
	e.Str(o.Shipping.Line1)
	if o.Shipping.Line2 != "" {
		e.FieldStart("line2")
		e.Str(o.Shipping.Line2)
	}
	e.FieldStart("city")
	e.Str(o.Shipping.City)
	e.FieldStart("state")
	e.Str(o.Shipping.State)
	e.FieldStart("postal_code")
	e.Str(o.Shipping.PostalCode)
	e.ObjEnd()

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("title")
		e.Str(it.Title)
		e.FieldStart("unit_price")
		e.Float64(it.UnitPrice.InexactFloat64())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		if it.Image != "" {
			e.FieldStart("image")
			e.Str(it.Image)
		}
		e.ObjEnd()
	}
	e.ArrEnd()

	if !o.CreatedAt.IsZero() {
		e.FieldStart("created_at")
		e.Str(o.CreatedAt.Format(time.RFC3339))
	}
	e.ObjEnd()
}
