package models

import "time"

// StayStatus marks whether an occupancy fact is current.
type StayStatus string

const (
	StayActive StayStatus = "ACTIVE"
	StayEnded  StayStatus = "ENDED"
)

// StayRecord is the authoritative fact of a student occupying a room for a
// semester. At most one ACTIVE record exists per (student, semester).
type StayRecord struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	RoomID     string     `db:"room_id" json:"room_id"`
	SemesterID string     `db:"semester_id" json:"semester_id"`
	StartDate  time.Time  `db:"start_date" json:"start_date"`
	EndDate    time.Time  `db:"end_date" json:"end_date"`
	Status     StayStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
