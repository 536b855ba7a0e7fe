package dto

import "github.com/quanghuy-dev/dorm-api/internal/models"

// SubmitRegistrationRequest is the student-facing registration payload.
type SubmitRegistrationRequest struct {
	StudentID         string                  `json:"student_id" validate:"required"`
	Type              models.RegistrationType `json:"type" validate:"required,oneof=NORMAL PRIORITY RENEWAL"`
	DesiredRoomID     *string                 `json:"desired_room_id,omitempty"`
	DesiredBuildingID *string                 `json:"desired_building_id,omitempty"`
	PriorityCategory  *string                 `json:"priority_category,omitempty"`
}

// SubmitRegistrationResponse pairs the created registration with the room-fee
// invoice when one was issued in the same transaction.
type SubmitRegistrationResponse struct {
	Registration *models.Registration `json:"registration"`
	Invoice      *models.Invoice      `json:"invoice,omitempty"`
}

// DecideRegistrationRequest is the manager decision payload.
type DecideRegistrationRequest struct {
	Status    models.RegistrationStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED RETURN"`
	AdminNote *string                   `json:"admin_note,omitempty"`
}
