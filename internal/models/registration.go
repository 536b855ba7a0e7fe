package models

import "time"

// RegistrationStatus tracks the lifecycle of a housing request.
// APPROVED and REJECTED are terminal; RETURN hands the request back to the
// student for more information.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "PENDING"
	RegistrationApproved RegistrationStatus = "APPROVED"
	RegistrationRejected RegistrationStatus = "REJECTED"
	RegistrationReturned RegistrationStatus = "RETURN"
)

// Terminal reports whether the status permits no further transitions.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationApproved || s == RegistrationRejected
}

// Registration is one student's request for a stay in a semester.
type Registration struct {
	ID                string             `db:"id" json:"id"`
	StudentID         string             `db:"student_id" json:"student_id"`
	SemesterID        string             `db:"semester_id" json:"semester_id"`
	Type              RegistrationType   `db:"type" json:"type"`
	DesiredRoomID     *string            `db:"desired_room_id" json:"desired_room_id,omitempty"`
	DesiredBuildingID *string            `db:"desired_building_id" json:"desired_building_id,omitempty"`
	PriorityCategory  *string            `db:"priority_category" json:"priority_category,omitempty"`
	Status            RegistrationStatus `db:"status" json:"status"`
	InvoiceID         *string            `db:"invoice_id" json:"invoice_id,omitempty"`
	AdminNote         *string            `db:"admin_note" json:"admin_note,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail joins contextual names for list screens.
type RegistrationDetail struct {
	Registration
	StudentName   string  `db:"student_name" json:"student_name"`
	StudentGender Gender  `db:"student_gender" json:"student_gender"`
	RoomName      *string `db:"room_name" json:"room_name,omitempty"`
}

// RegistrationFilter defines filters supported by list endpoints.
type RegistrationFilter struct {
	SemesterID string
	StudentID  string
	Status     RegistrationStatus
	Type       RegistrationType
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// PendingAssignment is a pending registration annotated for the batch matcher.
type PendingAssignment struct {
	Registration
	StudentName   string `db:"student_name" json:"student_name"`
	StudentGender Gender `db:"student_gender" json:"student_gender"`
}
