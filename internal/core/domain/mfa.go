package domain

import "time"

// MfaDeviceType enumerates supported second-factor channels.
type MfaDeviceType string

const (
	MfaDeviceTOTP       MfaDeviceType = "totp"
	MfaDeviceSMS        MfaDeviceType = "sms"
	MfaDeviceEmail      MfaDeviceType = "email"
	MfaDeviceBackupCode MfaDeviceType = "backup_code"
)

// Valid reports whether the type is one of the supported channels.
func (t MfaDeviceType) Valid() bool {
	switch t {
	case MfaDeviceTOTP, MfaDeviceSMS, MfaDeviceEmail, MfaDeviceBackupCode:
		return true
	}
	return false
}

// MfaDevice mirrors the persisted representation in the mfa_devices table.
// BackupCodes holds one-way hashes only; plaintext codes are returned to the
// caller exactly once at enrollment.
type MfaDevice struct {
	ID          string
	UserID      string
	Type        MfaDeviceType
	Name        string
	Secret      string
	BackupCodes []string
	IsEnabled   bool
	IsVerified  bool
	LastUsedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MfaAttempt is an append-only audit row per verification attempt. The raw
// code is never stored.
type MfaAttempt struct {
	ID        string
	DeviceID  string
	UserID    string
	Succeeded bool
	Method    string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}

// MfaEnrollment is returned from device creation. ProvisioningURI and
// BackupCodes are populated for TOTP devices only; the codes cannot be
// retrieved again afterwards.
type MfaEnrollment struct {
	Device          MfaDevice
	ProvisioningURI string
	BackupCodes     []string
}
