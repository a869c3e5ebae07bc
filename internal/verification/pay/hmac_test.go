package pay

import (
	"errors"
	"testing"
)

func TestVerifyHMAC(t *testing.T) {
	body := []byte("{\"ok\":true}")
	secret := "secret"
	signature := Sign(body, secret)
	if !VerifyHMAC(body, signature, secret) {
		t.Fatal("expected signature to be valid")
	}
	if VerifyHMAC(body, "deadbeef", secret) {
		t.Fatal("unexpected valid signature")
	}
	if VerifyHMAC(body, "not-hex", secret) {
		t.Fatal("unexpected valid non-hex signature")
	}
	if VerifyHMAC(body, signature, "") {
		t.Fatal("empty secret must never verify")
	}
}

func TestParseCallback(t *testing.T) {
	body := []byte(`{"invoice_id":" INV-1 ","status":"SUCCESS","provider_ref":"MP123"}`)
	cb, err := ParseCallback(body, Sign(body, "s3cret"), "s3cret")
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if cb.InvoiceID != "INV-1" || cb.Status != CallbackSuccess || cb.ProviderRef != "MP123" {
		t.Fatalf("unexpected callback %+v", cb)
	}

	if _, err := ParseCallback(body, Sign(body, "other"), "s3cret"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	bad := []byte(`{"invoice_id":"INV-1","status":"pending"}`)
	if _, err := ParseCallback(bad, Sign(bad, "s3cret"), "s3cret"); err == nil {
		t.Fatal("expected unsupported status error")
	}
}
