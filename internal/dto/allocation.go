package dto

// AssignmentOutcome is the per-registration result of a batch run.
type AssignmentOutcome struct {
	RegistrationID string `json:"registration_id"`
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name"`
	RoomID         string `json:"room_id,omitempty"`
	RoomName       string `json:"room_name,omitempty"`
	Assigned       bool   `json:"assigned"`
	Reason         string `json:"reason,omitempty"`
}

// AssignmentReport summarises one allocator run.
type AssignmentReport struct {
	SemesterID string              `json:"semester_id"`
	Total      int                 `json:"total"`
	Success    int                 `json:"success"`
	Failed     int                 `json:"failed"`
	Details    []AssignmentOutcome `json:"details"`
}

// AutoAssignRequest triggers a batch allocation run.
type AutoAssignRequest struct {
	SemesterID string `json:"semester_id" validate:"required"`
}
