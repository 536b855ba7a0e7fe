package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quanghuy-dev/dorm-api/internal/models"
	"github.com/quanghuy-dev/dorm-api/internal/service"
	"github.com/quanghuy-dev/dorm-api/pkg/response"
)

type roomLister interface {
	ListAvailability(ctx context.Context, semesterID string) ([]models.RoomAvailability, error)
}

type stayLister interface {
	ListActiveByRoom(ctx context.Context, roomID, semesterID string) ([]models.StayRecord, error)
}

// RoomHandler exposes room availability and occupancy.
type RoomHandler struct {
	rooms     roomLister
	stays     stayLister
	semesters *service.SemesterService
}

// NewRoomHandler constructs a room handler.
func NewRoomHandler(rooms roomLister, stays stayLister, semesters *service.SemesterService) *RoomHandler {
	return &RoomHandler{rooms: rooms, stays: stays, semesters: semesters}
}

// Availability godoc
// @Summary List rooms with remaining capacity
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms/availability [get]
func (h *RoomHandler) Availability(c *gin.Context) {
	semester, err := h.semesters.ActiveSemester(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	rooms, err := h.rooms.ListAvailability(c.Request.Context(), semester.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Occupants godoc
// @Summary List active stays in a room
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/occupants [get]
func (h *RoomHandler) Occupants(c *gin.Context) {
	semester, err := h.semesters.ActiveSemester(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	stays, err := h.stays.ListActiveByRoom(c.Request.Context(), c.Param("id"), semester.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stays, nil)
}
