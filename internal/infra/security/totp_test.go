package security

import (
	"strings"
	"testing"
	"time"
)

func TestTOTPRoundTrip(t *testing.T) {
	strategy := NewTOTPStrategy("tenant-guard")

	secret, err := strategy.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	code, err := strategy.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	ok, err := strategy.ValidateCode(code, secret, at)
	if err != nil {
		t.Fatalf("ValidateCode: %v", err)
	}
	if !ok {
		t.Fatal("expected code to validate within the same step")
	}
}

func TestTOTPRejectsOtherSecret(t *testing.T) {
	strategy := NewTOTPStrategy("tenant-guard")

	secret, err := strategy.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	other, err := strategy.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	code, err := strategy.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	ok, err := strategy.ValidateCode(code, other, at)
	if err != nil {
		t.Fatalf("ValidateCode: %v", err)
	}
	if ok {
		t.Fatal("code generated for one secret must not validate for another")
	}
}

func TestTOTPNoSkewWindow(t *testing.T) {
	strategy := NewTOTPStrategy("tenant-guard")

	secret, err := strategy.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	// Step boundary: codes from the previous step are rejected when skew is 0.
	at := time.Date(2025, 3, 14, 9, 27, 0, 0, time.UTC)
	previous := at.Add(-30 * time.Second)

	code, err := strategy.GenerateCode(secret, previous)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	ok, err := strategy.ValidateCode(code, secret, at)
	if err != nil {
		t.Fatalf("ValidateCode: %v", err)
	}
	if ok {
		t.Fatal("previous-step code must not validate without a skew window")
	}

	ok, err = strategy.WithSkew(1).ValidateCode(code, secret, at)
	if err != nil {
		t.Fatalf("ValidateCode with skew: %v", err)
	}
	if !ok {
		t.Fatal("previous-step code should validate with a one-step skew")
	}
}

func TestTOTPMalformedCodeIsMismatch(t *testing.T) {
	strategy := NewTOTPStrategy("tenant-guard")

	secret, err := strategy.NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	ok, err := strategy.ValidateCode("12345", secret, time.Now())
	if err != nil {
		t.Fatalf("ValidateCode: %v", err)
	}
	if ok {
		t.Fatal("5-digit input must not validate")
	}
}

func TestProvisioningURI(t *testing.T) {
	strategy := NewTOTPStrategy("tenant-guard")

	uri, err := strategy.ProvisioningURI("teacher@school.example", "JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("ProvisioningURI: %v", err)
	}

	for _, want := range []string{"otpauth://totp/", "tenant-guard", "teacher@school.example", "secret=JBSWY3DPEHPK3PXP"} {
		if !strings.Contains(uri, want) {
			t.Fatalf("uri %q missing %q", uri, want)
		}
	}
}
