package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/middleware"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// InvoiceHandler exposes invoice listing and statement exports.
type InvoiceHandler struct {
	invoices *service.InvoiceService
}

// NewInvoiceHandler constructs an invoice handler.
func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status"
// @Param studentId query string false "Filter by paying student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var filter models.InvoiceFilter
	if category := c.Query("category"); category != "" {
		filter.Category = models.InvoiceCategory(category)
	}
	if status := c.Query("status"); status != "" {
		filter.Status = models.InvoiceStatus(status)
	}
	filter.StudentID = c.Query("studentId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	invoices, pagination, err := h.invoices.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get an invoice
// @Description Returns the invoice plus its room fee detail when the category carries one
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	detail, err := h.invoices.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.authorize(c, detail.Invoice); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Statement godoc
// @Summary Download an invoice statement
// @Tags Invoices
// @Produce application/pdf,text/csv
// @Param id path string true "Invoice ID"
// @Param format query string false "pdf or csv" default(pdf)
// @Success 200 {file} binary
// @Router /invoices/{id}/statement [get]
func (h *InvoiceHandler) Statement(c *gin.Context) {
	invoice, err := h.invoices.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.authorize(c, invoice); err != nil {
		response.Error(c, err)
		return
	}

	statement, err := h.invoices.Statement(c.Request.Context(), invoice.ID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", statement.FileName))
	c.Data(http.StatusOK, statement.ContentType, statement.Content)
}

// authorize lets managers and admins through; students may only read invoices
// they paid.
func (h *InvoiceHandler) authorize(c *gin.Context, invoice *models.Invoice) error {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil
	}
	if invoice.PaidByStudentID != nil && *invoice.PaidByStudentID == claims.UserID {
		return nil
	}
	if invoice.Status != models.InvoicePaid {
		return nil
	}
	return appErrors.ErrForbidden
}
