package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mercatolabs/checkout/internal/domain/coupon"
	"github.com/mercatolabs/checkout/internal/domain/order"
)

type checkoutItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
}

type checkoutRequest struct {
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	Items           []checkoutItem        `json:"items"`
	CouponCode      string                `json:"coupon_code"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.Item{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Image:     it.Image,
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        UserID(r.Context()),
		Shipping:      req.ShippingAddress,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Items:         items,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

// writeCheckoutError maps domain errors onto the wire. Coupon failures are
// surfaced verbatim; validation failures are 400s; anything else is internal.
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrLimitReached),
		errors.Is(err, coupon.ErrBelowMinimum):
		writeError(w, http.StatusUnprocessableEntity, couponReason(err))
		return
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrZeroTotal):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		iqErr *order.InvalidQuantityError
		ipErr *order.InvalidPriceError
		diErr *order.DuplicateItemError
		maErr *order.MissingAddressFieldError
	)
	if errors.As(err, &iqErr) || errors.As(err, &ipErr) || errors.As(err, &diErr) || errors.As(err, &maErr) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	zctx.From(r.Context()).Error("checkout failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// couponReason strips wrapping so users see the coupon failure verbatim.
func couponReason(err error) string {
	for _, sentinel := range []error{
		coupon.ErrNotFound, coupon.ErrExpired, coupon.ErrLimitReached, coupon.ErrBelowMinimum,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

type validateCouponRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// validateCoupon prices a coupon without committing anything.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code required")
		return
	}
	if req.OrderAmount.IsNegative() {
		writeError(w, http.StatusBadRequest, "order amount must not be negative")
		return
	}

	var e jx.Encoder
	discount, err := h.coupons.Validate(r.Context(), req.Code, req.OrderAmount)
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrNotFound),
			errors.Is(err, coupon.ErrExpired),
			errors.Is(err, coupon.ErrLimitReached),
			errors.Is(err, coupon.ErrBelowMinimum):
			e.ObjStart()
			e.FieldStart("valid")
			e.Bool(false)
			e.FieldStart("reason")
			e.StrEscape(couponReason(err))
			e.ObjEnd()
			writeJSON(w, http.StatusOK, &e)
		default:
			zctx.From(r.Context()).Error("coupon validation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(true)
	e.FieldStart("discount_amount")
	e.Float64(discount.Amount.InexactFloat64())
	if discount.Description != "" {
		e.FieldStart("description")
		e.StrEscape(discount.Description)
	}
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
