package models

import (
	"fmt"
	"time"
)

// NotificationScope is the audience kind of a notification target.
type NotificationScope string

const (
	ScopeIndividual NotificationScope = "INDIVIDUAL"
	ScopeRoom       NotificationScope = "ROOM"
	ScopeBuilding   NotificationScope = "BUILDING"
	ScopeAll        NotificationScope = "ALL"
)

// NotificationTarget names an audience as a tagged union validated once at the
// boundary: a scope plus the IDs it applies to.
type NotificationTarget struct {
	Scope NotificationScope `json:"scope"`
	IDs   []string          `json:"ids,omitempty"`
}

// Validate checks scope/ids consistency.
func (t NotificationTarget) Validate() error {
	switch t.Scope {
	case ScopeAll:
		if len(t.IDs) != 0 {
			return fmt.Errorf("scope ALL takes no ids")
		}
	case ScopeIndividual, ScopeRoom, ScopeBuilding:
		if len(t.IDs) == 0 {
			return fmt.Errorf("scope %s requires at least one id", t.Scope)
		}
	default:
		return fmt.Errorf("unknown notification scope %q", t.Scope)
	}
	return nil
}

// Notification is one delivered message row. Outbound channels (email, push)
// are handled by an external service reading this table.
type Notification struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
