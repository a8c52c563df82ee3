package security

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
)

// backup codes use an unambiguous alphabet: no 0/O, 1/I/L.
const backupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// BackupCodeCount is the number of codes issued at TOTP enrollment.
const BackupCodeCount = 10

// BackupCodeLength is the length of each generated backup code.
const BackupCodeLength = 10

// GenerateBackupCodes returns BackupCodeCount random printable codes.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, 0, BackupCodeCount)
	for i := 0; i < BackupCodeCount; i++ {
		code, err := randomString(backupCodeAlphabet, BackupCodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// GenerateOpaqueSecret returns a random base32 string used as the secret
// placeholder for delegated-channel devices (sms/email).
func GenerateOpaqueSecret(size int) (string, error) {
	if size <= 0 {
		size = 20
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
