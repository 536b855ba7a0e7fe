package models

import "time"

// InvoiceCategory tells which satellite detail row an invoice owns.
type InvoiceCategory string

const (
	InvoiceRoomFee InvoiceCategory = "ROOM_FEE"
	InvoiceUtility InvoiceCategory = "UTILITY"
	InvoiceOther   InvoiceCategory = "OTHER"
)

// InvoiceStatus is the billing lifecycle. Only the payment broker moves an
// invoice to PAID.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoicePublished InvoiceStatus = "PUBLISHED"
	InvoicePaid      InvoiceStatus = "PAID"
)

// Invoice is a billing record.
type Invoice struct {
	ID              string          `db:"id" json:"id"`
	InvoiceCode     string          `db:"invoice_code" json:"invoice_code"`
	Category        InvoiceCategory `db:"category" json:"category"`
	TotalAmount     int64           `db:"total_amount" json:"total_amount"`
	Status          InvoiceStatus   `db:"status" json:"status"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	PaidByStudentID *string         `db:"paid_by_student_id" json:"paid_by_student_id,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// RoomFeeInvoice is the satellite detail for ROOM_FEE invoices.
type RoomFeeInvoice struct {
	ID         string `db:"id" json:"id"`
	InvoiceID  string `db:"invoice_id" json:"invoice_id"`
	RoomID     string `db:"room_id" json:"room_id"`
	SemesterID string `db:"semester_id" json:"semester_id"`
	Price      int64  `db:"price" json:"price"`
}

// InvoiceFilter defines filters supported by invoice listing.
type InvoiceFilter struct {
	Category  InvoiceCategory
	Status    InvoiceStatus
	StudentID string
	Page      int
	PageSize  int
}
