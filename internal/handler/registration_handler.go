package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/middleware"
	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// RegistrationHandler exposes registration endpoints.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	allocations   *service.AllocationService
	metrics       *service.MetricsService
}

// NewRegistrationHandler constructs a registration handler.
func NewRegistrationHandler(registrations *service.RegistrationService, allocations *service.AllocationService, metrics *service.MetricsService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, allocations: allocations, metrics: metrics}
}

// Create godoc
// @Summary Submit a housing registration
// @Description Creates a registration and, for NORMAL requests naming a room, the room-fee invoice
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRegistrationRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var req dto.SubmitRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := middleware.CurrentClaims(c); claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	result, err := h.registrations.Submit(c.Request.Context(), req)
	if err != nil {
		h.metrics.RecordRegistration("rejected")
		response.Error(c, err)
		return
	}
	h.metrics.RecordRegistration("accepted")
	response.Created(c, result)
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param semesterId query string false "Filter by semester"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	var filter models.RegistrationFilter
	filter.SemesterID = c.Query("semesterId")
	filter.StudentID = c.Query("studentId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.RegistrationStatus(status)
	}
	if regType := c.Query("type"); regType != "" {
		filter.Type = models.RegistrationType(regType)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	registrations, pagination, err := h.registrations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, pagination)
}

// AutoAssign godoc
// @Summary Run batch room assignment
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.AutoAssignRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/auto-assign [post]
func (h *RegistrationHandler) AutoAssign(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	report, err := h.allocations.AutoAssign(c.Request.Context(), req.SemesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordAssignments(report.Success, report.Failed)
	response.JSON(c, http.StatusOK, report, nil)
}

// UpdateStatus godoc
// @Summary Decide a registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.DecideRegistrationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/status [put]
func (h *RegistrationHandler) UpdateStatus(c *gin.Context) {
	var req dto.DecideRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	registration, err := h.registrations.Decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}
