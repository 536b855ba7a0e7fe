package models

import (
	"strings"
	"time"
)

// GenderRestriction constrains which genders a building accepts.
type GenderRestriction string

const (
	RestrictionMale   GenderRestriction = "MALE"
	RestrictionFemale GenderRestriction = "FEMALE"
	RestrictionMixed  GenderRestriction = "MIXED"
)

// Accepts reports whether a student of the given gender may live in the building.
func (r GenderRestriction) Accepts(g Gender) bool {
	switch r {
	case RestrictionMixed:
		return true
	case RestrictionMale:
		return g == GenderMale
	case RestrictionFemale:
		return g == GenderFemale
	}
	return false
}

// RoomStatus marks whether a room can take new occupants.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "AVAILABLE"
	RoomFull      RoomStatus = "FULL"
	RoomInactive  RoomStatus = "INACTIVE"
)

// Building groups rooms under a shared gender restriction.
type Building struct {
	ID                string            `db:"id" json:"id"`
	Name              string            `db:"name" json:"name"`
	GenderRestriction GenderRestriction `db:"gender_restriction" json:"gender_restriction"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

// Room is a bookable dormitory room. Occupancy is derived from ACTIVE stay
// records, never stored on the row.
type Room struct {
	ID               string     `db:"id" json:"id"`
	BuildingID       string     `db:"building_id" json:"building_id"`
	Name             string     `db:"name" json:"name"`
	MaxCapacity      int        `db:"max_capacity" json:"max_capacity"`
	PricePerSemester int64      `db:"price_per_semester" json:"price_per_semester"`
	Status           RoomStatus `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// RoomAvailability annotates a room with its occupancy for one semester.
// OccupantGenders is a comma-joined aggregate of distinct occupant genders.
type RoomAvailability struct {
	ID                string            `db:"id" json:"id"`
	BuildingID        string            `db:"building_id" json:"building_id"`
	BuildingName      string            `db:"building_name" json:"building_name"`
	Name              string            `db:"name" json:"name"`
	MaxCapacity       int               `db:"max_capacity" json:"max_capacity"`
	PricePerSemester  int64             `db:"price_per_semester" json:"price_per_semester"`
	Status            RoomStatus        `db:"status" json:"status"`
	GenderRestriction GenderRestriction `db:"gender_restriction" json:"gender_restriction"`
	Occupancy         int               `db:"occupancy" json:"occupancy"`
	OccupantGenders   string            `db:"occupant_genders" json:"-"`
}

// OccupantGenderList splits the aggregated occupant genders.
func (r *RoomAvailability) OccupantGenderList() []Gender {
	if r.OccupantGenders == "" {
		return nil
	}
	parts := strings.Split(r.OccupantGenders, ",")
	genders := make([]Gender, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			genders = append(genders, Gender(trimmed))
		}
	}
	return genders
}

// AcceptsOccupant applies the building restriction plus the single-gender room
// rule: once occupied, a room only takes the occupants' gender even in MIXED
// buildings.
func (r *RoomAvailability) AcceptsOccupant(g Gender) bool {
	if !r.GenderRestriction.Accepts(g) {
		return false
	}
	for _, occupant := range r.OccupantGenderList() {
		if occupant != g {
			return false
		}
	}
	return true
}
