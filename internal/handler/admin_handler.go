package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/scheduler"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

// AdminHandler exposes the background job surface.
type AdminHandler struct {
	scheduler *scheduler.Scheduler
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{scheduler: sched}
}

// ListJobs godoc
// @Summary List scheduled jobs
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/jobs [get]
func (h *AdminHandler) ListJobs(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.scheduler.Jobs(), nil)
}

// RunJob godoc
// @Summary Trigger a job outside its schedule
// @Tags Admin
// @Produce json
// @Param name path string true "Job name"
// @Success 202 {object} response.Envelope
// @Router /admin/jobs/{name}/run [post]
func (h *AdminHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.scheduler.RunNow(name); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"job": name, "status": "triggered"})
}
