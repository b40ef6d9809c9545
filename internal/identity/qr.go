package identity

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"learncenter/internal/apperr"
	"learncenter/internal/user"
)

// QRType is the discriminator every attendance QR payload carries.
const QRType = "attendance"

// QRPayload is the JSON object embedded in a student's attendance QR code.
type QRPayload struct {
	Type        string `json:"type"`
	UserID      string `json:"userId,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Validate checks the discriminator and that at least one identifier is set.
func (p QRPayload) Validate() error {
	if p.Type != QRType {
		return apperr.Validation("QR code is not an attendance code")
	}
	if strings.TrimSpace(p.UserID) == "" && strings.TrimSpace(p.PhoneNumber) == "" {
		return apperr.Validation("QR code carries no user identifier")
	}
	return nil
}

// ParseQRPayload decodes the text read from a scanned QR code.
func ParseQRPayload(raw []byte) (QRPayload, error) {
	var p QRPayload
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(raw)))
	if err := dec.Decode(&p); err != nil {
		return QRPayload{}, apperr.Validation("QR code content is not valid JSON")
	}
	if err := p.Validate(); err != nil {
		return QRPayload{}, err
	}
	return p, nil
}

// PayloadFor builds the QR payload identifying u.
func PayloadFor(u user.User) QRPayload {
	return QRPayload{Type: QRType, UserID: u.ID, PhoneNumber: u.PhoneNumber}
}

// EncodeQR renders the attendance QR code for u as a PNG of size×size pixels.
func EncodeQR(u user.User, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	content, err := json.Marshal(PayloadFor(u))
	if err != nil {
		return nil, errors.Wrap(err, "marshal qr payload")
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	return png, errors.Wrap(err, "encode qr")
}
