package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mercatolabs/checkout/internal/domain/order"
	"github.com/mercatolabs/checkout/internal/domain/payment"
)

type verifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
}

// verifyPayment reconciles a gateway callback (or a client-relayed gateway
// result) against the order. A mismatched signature is expected traffic and
// answered with 400; storage trouble after a valid signature is a 500 the
// gateway may retry safely.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.GatewayOrderID == "" || req.GatewayPaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "order_id, gateway_order_id, gateway_payment_id and signature are required")
		return
	}

	p, err := h.reconciler.VerifyAndApply(r.Context(), payment.VerifyRequest{
		UserID:           UserID(r.Context()),
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrSignatureMismatch):
			writeError(w, http.StatusBadRequest, "payment verification failed")
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		default:
			zctx.From(r.Context()).Error("payment reconciliation failed",
				zap.String("order_id", req.OrderID),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("verified")
	e.Bool(true)
	e.FieldStart("payment_id")
	e.Str(p.ID)
	e.FieldStart("order_id")
	e.Str(p.OrderID)
	e.FieldStart("amount")
	e.Float64(p.Amount.InexactFloat64())
	e.FieldStart("currency")
	e.Str(p.Currency)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
