package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// MfaHandler exposes second-factor enrollment and verification.
type MfaHandler struct {
	mfa     *usecase.MfaService
	metrics *telemetry.Metrics
}

func NewMfaHandler(mfa *usecase.MfaService, metrics *telemetry.Metrics) *MfaHandler {
	return &MfaHandler{mfa: mfa, metrics: metrics}
}

// MfaStatusResponse reports whether a user has a verified second factor.
type MfaStatusResponse struct {
	Enabled bool `json:"enabled"`
}

// Enroll registers a new device. For TOTP devices the response carries the
// provisioning URI and the one-time batch of backup codes.
func (h *MfaHandler) Enroll(c *gin.Context) {
	var req MfaDeviceCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.mfa.CreateDevice(c.Request.Context(), usecase.CreateDeviceInput{
		UserID: req.UserID,
		Email:  req.Email,
		Type:   domain.MfaDeviceType(strings.ToLower(strings.TrimSpace(req.Type))),
		Name:   req.Name,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUnsupportedDeviceType, Status: http.StatusBadRequest, Message: "unsupported device type"},
		}, http.StatusInternalServerError, "failed to enroll device")
		return
	}

	c.JSON(http.StatusCreated, MfaEnrollmentResponse{
		Device:          devicePayload(enrollment.Device),
		ProvisioningURI: enrollment.ProvisioningURI,
		BackupCodes:     enrollment.BackupCodes,
	})
}

// Verify checks a code against the device. A not-found response covers
// missing, disabled, and foreign devices alike.
func (h *MfaHandler) Verify(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Param("deviceID"))
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "device id is required"))
		return
	}

	var req MfaVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	input := usecase.VerifyCodeInput{
		DeviceID: deviceID,
		UserID:   req.UserID,
		Code:     req.Code,
	}
	ip := c.ClientIP()
	if ip != "" {
		input.IPAddress = &ip
	}
	if ua := c.GetHeader("User-Agent"); ua != "" {
		input.UserAgent = &ua
	}

	method := "device"
	verify := h.mfa.VerifyCode
	if req.Backup {
		method = "backup_code"
		verify = h.mfa.VerifyBackupCode
	}

	verified, err := verify(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDeviceNotFound, Status: http.StatusNotFound, Message: "device not found"},
			{Err: usecase.ErrUnsupportedDeviceType, Status: http.StatusBadRequest, Message: "unsupported device type"},
		}, http.StatusInternalServerError, "failed to verify code")
		return
	}

	if h.metrics != nil {
		outcome := "failure"
		if verified {
			outcome = "success"
		}
		h.metrics.MfaVerifications.WithLabelValues(method, outcome).Inc()
	}

	c.JSON(http.StatusOK, MfaVerifyResponse{Verified: verified})
}

// ListDevices returns the user's devices with secrets blanked.
func (h *MfaHandler) ListDevices(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id query parameter is required"))
		return
	}

	devices, err := h.mfa.ListDevices(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list devices"))
		return
	}

	payload := make([]MfaDevicePayload, 0, len(devices))
	for _, device := range devices {
		payload = append(payload, devicePayload(device))
	}

	c.JSON(http.StatusOK, payload)
}

// MfaStatus reports whether the user has at least one enabled, verified
// device.
func (h *MfaHandler) MfaStatus(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id query parameter is required"))
		return
	}

	enabled, err := h.mfa.IsMfaEnabled(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check mfa status"))
		return
	}

	c.JSON(http.StatusOK, MfaStatusResponse{Enabled: enabled})
}

// DisableDevice turns a device off for its owner.
func (h *MfaHandler) DisableDevice(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Param("deviceID"))
	userID := strings.TrimSpace(c.Query("user_id"))
	if deviceID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "device id and user_id are required"))
		return
	}

	if err := h.mfa.DisableDevice(c.Request.Context(), deviceID, userID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDeviceNotFound, Status: http.StatusNotFound, Message: "device not found"},
		}, http.StatusInternalServerError, "failed to disable device")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Device disabled"})
}
