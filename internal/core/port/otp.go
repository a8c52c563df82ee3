package port

import "time"

// CodeStrategy abstracts time-stepped one-time-password generation and
// verification so the MFA manager never depends on a concrete TOTP library.
type CodeStrategy interface {
	// NewSecret returns a fresh base32 shared secret.
	NewSecret() (string, error)
	// ProvisioningURI renders an otpauth:// enrollment URI for QR rendering
	// by an external collaborator.
	ProvisioningURI(accountName, secret string) (string, error)
	// GenerateCode computes the code for the time step containing at.
	GenerateCode(secret string, at time.Time) (string, error)
	// ValidateCode reports whether code matches the step containing at.
	ValidateCode(code, secret string, at time.Time) (bool, error)
}
