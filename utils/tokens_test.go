package utils

import (
	"testing"
	"time"
)

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager("test-signing-key")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, err := m.NewJWT(Claims{UserID: "adm-1", Role: RoleAdmin, Email: "ops@smartduka.co.ke"}, time.Hour)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "adm-1" || claims.Role != RoleAdmin || claims.Email != "ops@smartduka.co.ke" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestManagerRejectsForeignAndExpiredTokens(t *testing.T) {
	m, _ := NewManager("key-a")
	other, _ := NewManager("key-b")

	token, _ := other.NewJWT(Claims{UserID: "u"}, time.Hour)
	if _, err := m.Parse(token); err == nil {
		t.Fatalf("token signed with another key accepted")
	}

	expired, _ := m.NewJWT(Claims{UserID: "u"}, -time.Minute)
	if _, err := m.Parse(expired); err == nil {
		t.Fatalf("expired token accepted")
	}

	if _, err := NewManager(""); err == nil {
		t.Fatalf("empty signing key accepted")
	}
}
