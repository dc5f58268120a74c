// README: Payment handlers; checkout preference plus the idempotent webhook.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/payment"
	"ridepool/internal/types"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(svc *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: svc}
}

// CreatePreference opens the payment window for one of the caller's bookings.
func (h *PaymentHandler) CreatePreference(c *gin.Context) {
	p, err := h.payments.CreatePreference(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"external_id": p.ExternalID,
		"amount":      p.Amount.Amount,
		"currency":    p.Amount.Currency,
	})
}

type webhookReq struct {
	Reference         string `json:"external_reference"`
	ExternalPaymentID string `json:"payment_id"`
	Amount            int64  `json:"amount"`
}

// Webhook is the payment provider callback. Duplicate deliveries must get a
// 2xx so the provider stops retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req webhookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ExternalPaymentID == "" {
		writeError(c, http.StatusBadRequest, "missing payment_id")
		return
	}
	err := h.payments.Confirm(c.Request.Context(), payment.ConfirmCommand{
		Reference:         types.ID(req.Reference),
		ExternalPaymentID: req.ExternalPaymentID,
		Amount:            req.Amount,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

func (h *PaymentHandler) GetForBooking(c *gin.Context) {
	p, err := h.payments.GetByBooking(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"booking_id":  p.BookingID,
		"external_id": p.ExternalID,
		"amount":      p.Amount.Amount,
		"currency":    p.Amount.Currency,
		"status":      p.Status,
	})
}
