package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/dto"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	appErrors "github.com/quanghuy-dev/dorm-api/pkg/errors"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// UtilityHandler exposes utility cycle management.
type UtilityHandler struct {
	utilities *service.UtilityService
}

// NewUtilityHandler constructs a utility handler.
func NewUtilityHandler(utilities *service.UtilityService) *UtilityHandler {
	return &UtilityHandler{utilities: utilities}
}

// PublishCycle godoc
// @Summary Publish a utility cycle
// @Description Prices completed readings and publishes the cycle's invoices
// @Tags Utilities
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /utility/cycles/{id}/publish [post]
func (h *UtilityHandler) PublishCycle(c *gin.Context) {
	result, err := h.utilities.PublishCycle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecordReadings godoc
// @Summary Record meter readings for a cycle detail
// @Tags Utilities
// @Accept json
// @Produce json
// @Param id path string true "Cycle ID"
// @Param detailId path string true "Detail ID"
// @Param payload body dto.RecordReadingsRequest true "Meter readings"
// @Success 204
// @Router /utility/cycles/{id}/details/{detailId}/readings [put]
func (h *UtilityHandler) RecordReadings(c *gin.Context) {
	var req dto.RecordReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.utilities.RecordReadings(c.Request.Context(), c.Param("id"), c.Param("detailId"), req.ElectricityNew, req.WaterNew); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
