package security

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/campusops/tenant-guard/internal/core/port"
)

// TOTPStrategy implements port.CodeStrategy with RFC 6238 semantics:
// HMAC-SHA1 over the 30-second step counter, 6 digits, and no skew window by
// default so only the current step is accepted. Callers needing clock-skew
// tolerance construct the strategy with a nonzero skew.
type TOTPStrategy struct {
	issuer string
	opts   totp.ValidateOpts
}

// NewTOTPStrategy constructs the default strategy for the given issuer.
func NewTOTPStrategy(issuer string) *TOTPStrategy {
	return &TOTPStrategy{
		issuer: issuer,
		opts: totp.ValidateOpts{
			Period:    30,
			Skew:      0,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

// WithSkew returns a strategy accepting codes from skew adjacent steps in
// either direction.
func (s *TOTPStrategy) WithSkew(skew uint) *TOTPStrategy {
	clone := *s
	clone.opts.Skew = skew
	return &clone
}

// NewSecret returns a fresh base32 shared secret.
func (s *TOTPStrategy) NewSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: "pending",
		Period:      s.opts.Period,
		Digits:      s.opts.Digits,
		Algorithm:   s.opts.Algorithm,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI renders the otpauth:// enrollment URI for the account.
func (s *TOTPStrategy) ProvisioningURI(accountName, secret string) (string, error) {
	if accountName == "" {
		return "", fmt.Errorf("account name is required")
	}
	if secret == "" {
		return "", fmt.Errorf("secret is required")
	}

	values := url.Values{}
	values.Set("secret", secret)
	values.Set("issuer", s.issuer)
	values.Set("algorithm", s.opts.Algorithm.String())
	values.Set("digits", s.opts.Digits.String())
	values.Set("period", fmt.Sprintf("%d", s.opts.Period))

	uri := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + accountName,
		RawQuery: values.Encode(),
	}

	return uri.String(), nil
}

// GenerateCode computes the code for the time step containing at.
func (s *TOTPStrategy) GenerateCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, s.opts)
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}

// ValidateCode reports whether code matches the step containing at. Malformed
// input counts as a mismatch, not an error.
func (s *TOTPStrategy) ValidateCode(code, secret string, at time.Time) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, at, s.opts)
	if err != nil {
		if err == otp.ErrValidateInputInvalidLength {
			return false, nil
		}
		return false, fmt.Errorf("validate totp code: %w", err)
	}
	return ok, nil
}

var _ port.CodeStrategy = (*TOTPStrategy)(nil)
