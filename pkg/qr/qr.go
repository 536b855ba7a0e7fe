package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// EncodeBase64PNG renders the payload as a QR code PNG and returns it base64 encoded.
func EncodeBase64PNG(payload string, size int) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("qr payload is empty")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
