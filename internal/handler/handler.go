// Package handler exposes the checkout core over HTTP. Requests are decoded
// with encoding/json; responses are streamed with go-faster/jx.
package handler

import (
	"net/http"

	"github.com/mercatolabs/checkout/internal/domain/coupon"
	"github.com/mercatolabs/checkout/internal/domain/order"
	"github.com/mercatolabs/checkout/internal/domain/payment"
)

// Handler holds the domain collaborators behind the HTTP surface.
type Handler struct {
	orders     *order.Service
	coupons    coupon.Validator
	reconciler *payment.Reconciler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	coupons coupon.Validator,
	reconciler *payment.Reconciler,
) *Handler {
	return &Handler{
		orders:     orders,
		coupons:    coupons,
		reconciler: reconciler,
	}
}

// Register attaches all API routes to the mux. Authentication is applied by
// the caller around the whole /api/ subtree.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.placeOrder)
	mux.HandleFunc("POST /api/coupon/validate", h.validateCoupon)
	mux.HandleFunc("POST /api/payment/verify", h.verifyPayment)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/orders/{id}/cancel", h.cancelOrder)
}
