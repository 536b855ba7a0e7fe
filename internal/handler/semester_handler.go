package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// SemesterHandler exposes the active semester and its registration windows.
type SemesterHandler struct {
	semesters *service.SemesterService
}

// NewSemesterHandler constructs a semester handler.
func NewSemesterHandler(semesters *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{semesters: semesters}
}

// GetActive godoc
// @Summary Get the active semester
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/active [get]
func (h *SemesterHandler) GetActive(c *gin.Context) {
	semester, err := h.semesters.ActiveSemester(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Windows godoc
// @Summary Get registration window states
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/active/windows [get]
func (h *SemesterHandler) Windows(c *gin.Context) {
	types := []models.RegistrationType{
		models.RegistrationTypeNormal,
		models.RegistrationTypePriority,
		models.RegistrationTypeRenewal,
	}
	windows := make([]models.WindowStatus, 0, len(types))
	for _, regType := range types {
		status, err := h.semesters.ResolveWindow(c.Request.Context(), regType)
		if err != nil {
			response.Error(c, err)
			return
		}
		windows = append(windows, *status)
	}
	response.JSON(c, http.StatusOK, windows, nil)
}
