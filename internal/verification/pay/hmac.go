package pay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Gateway callback statuses.
const (
	CallbackSuccess = "success"
	CallbackFailed  = "failed"
)

// ErrBadSignature is returned when a callback signature does not match its body.
var ErrBadSignature = errors.New("pay: invalid callback signature")

// Sign returns the hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC validates a signature using HMAC-SHA256.
func VerifyHMAC(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	sigBytes, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), sigBytes)
}

// Callback is the payment channel notification for one invoice.
type Callback struct {
	InvoiceID   string `json:"invoice_id"`
	Status      string `json:"status"`
	ProviderRef string `json:"provider_ref"`
	Message     string `json:"message,omitempty"`
}

// ParseCallback verifies the signature and decodes body.
func ParseCallback(body []byte, signature, secret string) (Callback, error) {
	if !VerifyHMAC(body, signature, secret) {
		return Callback{}, ErrBadSignature
	}
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, fmt.Errorf("decode callback: %w", err)
	}
	cb.InvoiceID = strings.TrimSpace(cb.InvoiceID)
	cb.Status = strings.ToLower(strings.TrimSpace(cb.Status))
	if cb.InvoiceID == "" {
		return Callback{}, errors.New("callback: invoice_id is required")
	}
	if cb.Status != CallbackSuccess && cb.Status != CallbackFailed {
		return Callback{}, fmt.Errorf("callback: unsupported status %q", cb.Status)
	}
	return cb, nil
}
