package models

import "time"

// UtilityCycleStatus is the lifecycle of a monthly metering cycle.
type UtilityCycleStatus string

const (
	UtilityCycleDraft     UtilityCycleStatus = "DRAFT"
	UtilityCyclePublished UtilityCycleStatus = "PUBLISHED"
)

// UtilityCycle groups the utility invoices of one calendar month.
type UtilityCycle struct {
	ID        string             `db:"id" json:"id"`
	Month     int                `db:"month" json:"month"`
	Year      int                `db:"year" json:"year"`
	Status    UtilityCycleStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// UtilityInvoice is the satellite detail for UTILITY invoices. Old readings are
// carried forward from the room's last published invoice; nil means the room
// needs a manual baseline.
type UtilityInvoice struct {
	ID             string `db:"id" json:"id"`
	InvoiceID      string `db:"invoice_id" json:"invoice_id"`
	CycleID        string `db:"cycle_id" json:"cycle_id"`
	RoomID         string `db:"room_id" json:"room_id"`
	ElectricityOld *int64 `db:"electricity_old" json:"electricity_old"`
	ElectricityNew *int64 `db:"electricity_new" json:"electricity_new"`
	WaterOld       *int64 `db:"water_old" json:"water_old"`
	WaterNew       *int64 `db:"water_new" json:"water_new"`
}
