package dto

import "time"

// IssueReferenceResponse returns a renderable payment artifact. The QR code is
// a base64 PNG; the payload carries no secret material beyond the reference.
type IssueReferenceResponse struct {
	PaymentRef string    `json:"paymentRef"`
	QRCode     string    `json:"qrCode"`
	Payload    string    `json:"payload"`
	Amount     int64     `json:"amount"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ConfirmPaymentRequest redeems a payment reference against an invoice.
type ConfirmPaymentRequest struct {
	PaymentRef string `json:"paymentRef" validate:"required"`
	InvoiceID  string `json:"invoiceId" validate:"required"`
	StudentID  string `json:"studentId" validate:"required"`
}

// VerifyReferenceResponse reports the state of an outstanding reference.
type VerifyReferenceResponse struct {
	Valid     bool      `json:"valid"`
	Amount    int64     `json:"amount"`
	ExpiresAt time.Time `json:"expiresAt"`
}
