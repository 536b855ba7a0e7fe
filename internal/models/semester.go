package models

import "time"

// RegistrationType distinguishes the three registration windows of a semester.
type RegistrationType string

const (
	RegistrationTypeNormal   RegistrationType = "NORMAL"
	RegistrationTypePriority RegistrationType = "PRIORITY"
	RegistrationTypeRenewal  RegistrationType = "RENEWAL"
)

// Semester models an academic term. Exactly one semester is active at a time;
// semesters are managed by an external admin surface and treated read-only here.
type Semester struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         time.Time  `db:"end_date" json:"end_date"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	NormalOpenAt    *time.Time `db:"normal_open_at" json:"normal_open_at"`
	NormalCloseAt   *time.Time `db:"normal_close_at" json:"normal_close_at"`
	PriorityOpenAt  *time.Time `db:"priority_open_at" json:"priority_open_at"`
	PriorityCloseAt *time.Time `db:"priority_close_at" json:"priority_close_at"`
	RenewalOpenAt   *time.Time `db:"renewal_open_at" json:"renewal_open_at"`
	RenewalCloseAt  *time.Time `db:"renewal_close_at" json:"renewal_close_at"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Window returns the configured (open, close) pair for a registration type.
func (s *Semester) Window(t RegistrationType) (*time.Time, *time.Time) {
	switch t {
	case RegistrationTypeNormal:
		return s.NormalOpenAt, s.NormalCloseAt
	case RegistrationTypePriority:
		return s.PriorityOpenAt, s.PriorityCloseAt
	case RegistrationTypeRenewal:
		return s.RenewalOpenAt, s.RenewalCloseAt
	}
	return nil, nil
}

// WindowState captures where the wall clock sits relative to a window.
type WindowState string

const (
	WindowNotConfigured WindowState = "NOT_CONFIGURED"
	WindowNotYetOpen    WindowState = "NOT_YET_OPEN"
	WindowOpen          WindowState = "OPEN"
	WindowClosed        WindowState = "CLOSED"
)

// WindowStatus is the resolver output used for gating and user-facing messages.
type WindowStatus struct {
	Type     RegistrationType `json:"type"`
	State    WindowState      `json:"state"`
	OpensAt  *time.Time       `json:"opens_at,omitempty"`
	ClosesAt *time.Time       `json:"closes_at,omitempty"`
}
