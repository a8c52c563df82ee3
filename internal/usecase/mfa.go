package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/infra/logger"
	"github.com/campusops/tenant-guard/internal/infra/security"
	"github.com/campusops/tenant-guard/internal/repository"
)

var (
	// ErrDeviceNotFound covers both truly absent and disabled devices so a
	// caller cannot distinguish the two (anti-enumeration).
	ErrDeviceNotFound = errors.New("mfa device not found")
	// ErrUnsupportedDeviceType indicates an unknown enrollment type.
	ErrUnsupportedDeviceType = errors.New("unsupported mfa device type")
	// ErrDeviceOwnerMismatch indicates the device does not belong to the
	// supplied user. Mapped to the same not-found surface by transports.
	ErrDeviceOwnerMismatch = errors.New("mfa device owner mismatch")
)

// CreateDeviceInput describes an enrollment request.
type CreateDeviceInput struct {
	UserID string
	Email  string
	Type   domain.MfaDeviceType
	Name   string
}

// VerifyCodeInput describes a verification attempt.
type VerifyCodeInput struct {
	DeviceID  string
	UserID    string
	Code      string
	IPAddress *string
	UserAgent *string
}

// MfaService orchestrates device enrollment, code verification, and the
// verification audit trail.
type MfaService struct {
	devices  port.MfaDeviceRepository
	attempts port.MfaAttemptRepository
	codes    port.CodeStrategy
	hasher   port.CodeHasher
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time

	genBackupCodes func() ([]string, error)
	genSecret      func() (string, error)
}

// NewMfaService constructs an MfaService instance.
func NewMfaService(
	devices port.MfaDeviceRepository,
	attempts port.MfaAttemptRepository,
	codes port.CodeStrategy,
	hasher port.CodeHasher,
	events port.EventPublisher,
	logger *zap.Logger,
) *MfaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MfaService{
		devices:        devices,
		attempts:       attempts,
		codes:          codes,
		hasher:         hasher,
		events:         events,
		logger:         logger,
		now:            time.Now,
		genBackupCodes: security.GenerateBackupCodes,
		genSecret: func() (string, error) {
			return security.GenerateOpaqueSecret(20)
		},
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *MfaService) WithClock(clock func() time.Time) *MfaService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CreateDevice enrolls a new second factor. TOTP enrollment returns the
// provisioning URI and the plaintext backup codes exactly once; only their
// hashes are stored. Delegated channels (sms/email) receive an opaque secret
// placeholder and no backup codes.
func (s *MfaService) CreateDevice(ctx context.Context, input CreateDeviceInput) (*domain.MfaEnrollment, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.Valid() {
		return nil, ErrUnsupportedDeviceType
	}

	now := s.now().UTC()
	device := domain.MfaDevice{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Type:      input.Type,
		Name:      strings.TrimSpace(input.Name),
		IsEnabled: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	enrollment := domain.MfaEnrollment{}

	switch input.Type {
	case domain.MfaDeviceTOTP:
		if strings.TrimSpace(input.Email) == "" {
			return nil, fmt.Errorf("email is required for totp enrollment")
		}

		secret, err := s.codes.NewSecret()
		if err != nil {
			return nil, fmt.Errorf("generate totp secret: %w", err)
		}
		device.Secret = secret

		uri, err := s.codes.ProvisioningURI(input.Email, secret)
		if err != nil {
			return nil, fmt.Errorf("build provisioning uri: %w", err)
		}
		enrollment.ProvisioningURI = uri

		plaintext, hashes, err := s.issueBackupCodes()
		if err != nil {
			return nil, err
		}
		device.BackupCodes = hashes
		enrollment.BackupCodes = plaintext

	default:
		// sms/email verification is delegated to an external channel; the
		// secret is an opaque placeholder. A standalone backup_code device
		// starts with an empty code set until codes are provisioned onto it.
		secret, err := s.genSecret()
		if err != nil {
			return nil, fmt.Errorf("generate device secret: %w", err)
		}
		device.Secret = secret
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("create mfa device: %w", err)
	}

	enrollment.Device = device

	if s.events != nil {
		event := domain.MfaDeviceEnrolledEvent{
			EventID:    uuid.NewString(),
			DeviceID:   device.ID,
			UserID:     device.UserID,
			DeviceType: string(device.Type),
			EnrolledAt: now,
		}
		if err := s.events.PublishMfaDeviceEnrolled(ctx, event); err != nil {
			s.logger.Warn("publish mfa enrolled event failed", zap.Error(err))
		}
	}

	s.logger.Info("mfa device enrolled",
		zap.String("device_id", device.ID),
		zap.String("user_id", device.UserID),
		zap.String("type", string(device.Type)),
		zap.String("email", logger.MaskEmail(input.Email)),
	)

	return &enrollment, nil
}

// VerifyCode dispatches verification by device type and records an audit row
// for every attempt, success or failure. The raw code is never persisted.
func (s *MfaService) VerifyCode(ctx context.Context, input VerifyCodeInput) (bool, error) {
	device, err := s.eligibleDevice(ctx, input.DeviceID, input.UserID)
	if err != nil {
		return false, err
	}

	var (
		succeeded bool
		method    string
	)

	switch device.Type {
	case domain.MfaDeviceTOTP:
		method = "totp"
		ok, err := s.codes.ValidateCode(input.Code, device.Secret, s.now())
		if err != nil {
			return false, fmt.Errorf("validate totp code: %w", err)
		}
		succeeded = ok

	case domain.MfaDeviceBackupCode:
		method = "backup_code"
		ok, err := s.consumeBackupCode(ctx, device, input.Code)
		if err != nil {
			return false, err
		}
		succeeded = ok

	case domain.MfaDeviceSMS, domain.MfaDeviceEmail:
		// Delegated channel: the external notifier is assumed to have
		// validated the code already. Reduced assurance, recorded as such.
		method = "delegated"
		succeeded = true

	default:
		return false, ErrUnsupportedDeviceType
	}

	now := s.now().UTC()
	attempt := domain.MfaAttempt{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		UserID:    device.UserID,
		Succeeded: succeeded,
		Method:    method,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: now,
	}
	if err := s.attempts.Add(ctx, attempt); err != nil {
		return false, fmt.Errorf("record mfa attempt: %w", err)
	}

	if succeeded {
		if !device.IsVerified {
			if err := s.devices.MarkVerified(ctx, device.ID, now); err != nil {
				return false, fmt.Errorf("mark device verified: %w", err)
			}
		} else {
			if err := s.devices.TouchLastUsed(ctx, device.ID, now); err != nil {
				return false, fmt.Errorf("touch device: %w", err)
			}
		}
	}

	if s.events != nil {
		event := domain.MfaVerificationEvent{
			EventID:    uuid.NewString(),
			DeviceID:   device.ID,
			UserID:     device.UserID,
			DeviceType: string(device.Type),
			Succeeded:  succeeded,
			Method:     method,
			VerifiedAt: now,
			IPAddress:  input.IPAddress,
		}
		if err := s.events.PublishMfaVerification(ctx, event); err != nil {
			s.logger.Warn("publish mfa verification event failed", zap.Error(err))
		}
	}

	return succeeded, nil
}

// VerifyBackupCode verifies a backup code against a TOTP device's stored set.
// The code is single-use: acceptance removes its hash.
func (s *MfaService) VerifyBackupCode(ctx context.Context, input VerifyCodeInput) (bool, error) {
	device, err := s.eligibleDevice(ctx, input.DeviceID, input.UserID)
	if err != nil {
		return false, err
	}

	succeeded, err := s.consumeBackupCode(ctx, device, input.Code)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	attempt := domain.MfaAttempt{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		UserID:    device.UserID,
		Succeeded: succeeded,
		Method:    "backup_code",
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		CreatedAt: now,
	}
	if err := s.attempts.Add(ctx, attempt); err != nil {
		return false, fmt.Errorf("record mfa attempt: %w", err)
	}

	if succeeded {
		if err := s.devices.TouchLastUsed(ctx, device.ID, now); err != nil {
			return false, fmt.Errorf("touch device: %w", err)
		}
	}

	return succeeded, nil
}

// IsMfaEnabled reports whether the user has at least one device that is both
// enabled and verified.
func (s *MfaService) IsMfaEnabled(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("user id is required")
	}

	count, err := s.devices.CountEnabledVerified(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count mfa devices: %w", err)
	}

	return count > 0, nil
}

// ListDevices returns the user's devices with secrets and backup-code hashes
// blanked.
func (s *MfaService) ListDevices(ctx context.Context, userID string) ([]domain.MfaDevice, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list mfa devices: %w", err)
	}

	for i := range devices {
		devices[i].Secret = ""
		devices[i].BackupCodes = nil
	}

	return devices, nil
}

// DisableDevice turns a device off without deleting its audit trail.
func (s *MfaService) DisableDevice(ctx context.Context, deviceID, userID string) error {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("lookup mfa device: %w", err)
	}

	if userID != "" && device.UserID != userID {
		return ErrDeviceNotFound
	}

	if err := s.devices.SetEnabled(ctx, deviceID, false); err != nil {
		return fmt.Errorf("disable mfa device: %w", err)
	}

	return nil
}

func (s *MfaService) eligibleDevice(ctx context.Context, deviceID, userID string) (*domain.MfaDevice, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, ErrDeviceNotFound
	}

	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("lookup mfa device: %w", err)
	}

	// Disabled looks identical to absent from the outside.
	if !device.IsEnabled {
		return nil, ErrDeviceNotFound
	}

	if userID != "" && device.UserID != userID {
		return nil, ErrDeviceNotFound
	}

	return device, nil
}

func (s *MfaService) consumeBackupCode(ctx context.Context, device *domain.MfaDevice, code string) (bool, error) {
	if strings.TrimSpace(code) == "" {
		return false, nil
	}

	for i, hash := range device.BackupCodes {
		ok, err := s.hasher.Verify(code, hash)
		if err != nil {
			return false, fmt.Errorf("verify backup code: %w", err)
		}
		if !ok {
			continue
		}

		remaining := make([]string, 0, len(device.BackupCodes)-1)
		remaining = append(remaining, device.BackupCodes[:i]...)
		remaining = append(remaining, device.BackupCodes[i+1:]...)

		if err := s.devices.UpdateBackupCodes(ctx, device.ID, remaining); err != nil {
			return false, fmt.Errorf("consume backup code: %w", err)
		}
		device.BackupCodes = remaining

		return true, nil
	}

	return false, nil
}

func (s *MfaService) issueBackupCodes() ([]string, []string, error) {
	plaintext, err := s.genBackupCodes()
	if err != nil {
		return nil, nil, fmt.Errorf("generate backup codes: %w", err)
	}

	hashes := make([]string, 0, len(plaintext))
	for _, code := range plaintext {
		hash, err := s.hasher.Hash(code)
		if err != nil {
			return nil, nil, fmt.Errorf("hash backup code: %w", err)
		}
		hashes = append(hashes, hash)
	}

	return plaintext, hashes, nil
}
