package security

import "testing"

func TestArgon2HashRoundTrip(t *testing.T) {
	hasher, err := NewArgon2Hasher(DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	encoded, err := hasher.Hash("QX7KM2P4RT")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := hasher.Verify("QX7KM2P4RT", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching code to verify")
	}

	ok, err = hasher.Verify("QX7KM2P4RU", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected non-matching code to fail verification")
	}
}

func TestArgon2HashesAreSalted(t *testing.T) {
	hasher, err := NewArgon2Hasher(DefaultArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2Hasher: %v", err)
	}

	first, err := hasher.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := hasher.Hash("same-input")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if first == second {
		t.Fatal("two hashes of the same input must differ by salt")
	}
}

func TestArgon2RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultArgon2Config()
	cfg.Iterations = 0

	if _, err := NewArgon2Hasher(cfg); err == nil {
		t.Fatal("expected invalid configuration to be rejected")
	}
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes()
	if err != nil {
		t.Fatalf("GenerateBackupCodes: %v", err)
	}

	if len(codes) != BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", BackupCodeCount, len(codes))
	}

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if len(code) != BackupCodeLength {
			t.Fatalf("code %q has wrong length", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate backup code %q", code)
		}
		seen[code] = struct{}{}
	}
}
