package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/middleware"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// PaymentHandler exposes payment reference endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	metrics  *service.MetricsService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(payments *service.PaymentService, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{payments: payments, metrics: metrics}
}

// IssueQR godoc
// @Summary Issue a payment reference
// @Description Mints a short-lived payment reference for an invoice and renders it as a QR code
// @Tags Payments
// @Produce json
// @Param invoiceId path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /payments/qrcode/{invoiceId} [post]
func (h *PaymentHandler) IssueQR(c *gin.Context) {
	studentID := ""
	if claims := middleware.CurrentClaims(c); claims != nil {
		studentID = claims.UserID
	}

	result, err := h.payments.IssueReference(c.Request.Context(), c.Param("invoiceId"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Confirm godoc
// @Summary Confirm a payment
// @Description Redeems a payment reference exactly once and settles the invoice
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmPaymentRequest true "Confirmation payload"
// @Success 200 {object} response.Envelope
// @Router /payments/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := middleware.CurrentClaims(c); claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	invoice, err := h.payments.Confirm(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordPayment("failed")
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment("confirmed")
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Verify godoc
// @Summary Verify a payment reference
// @Tags Payments
// @Produce json
// @Param paymentRef path string true "Payment reference"
// @Success 200 {object} response.Envelope
// @Router /payments/verify/{paymentRef} [get]
func (h *PaymentHandler) Verify(c *gin.Context) {
	result, err := h.payments.Verify(c.Request.Context(), c.Param("paymentRef"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
