package dto

import "github.com/quanghuy-dev/dorm-api/internal/models"

// InvoiceDetailResponse pairs an invoice with its category detail row.
type InvoiceDetailResponse struct {
	Invoice *models.Invoice        `json:"invoice"`
	RoomFee *models.RoomFeeInvoice `json:"room_fee,omitempty"`
}
