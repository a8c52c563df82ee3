package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/transport/http/middleware"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// LockoutHandler exposes lockout status tracking and administrative unlock.
type LockoutHandler struct {
	lockouts *usecase.LockoutService
	metrics  *telemetry.Metrics
}

func NewLockoutHandler(lockouts *usecase.LockoutService, metrics *telemetry.Metrics) *LockoutHandler {
	return &LockoutHandler{lockouts: lockouts, metrics: metrics}
}

// RecordAttempt registers a failed login and reports whether the account is
// now locked. Unknown accounts are still recorded but never lock.
func (h *LockoutHandler) RecordAttempt(c *gin.Context) {
	var req FailedAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid failed attempt payload"))
		return
	}

	input := usecase.RecordAttemptInput{
		Email:     req.Email,
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
	if input.IPAddress == nil {
		ip := c.ClientIP()
		input.IPAddress = &ip
	}
	if input.UserAgent == nil {
		if ua := c.GetHeader("User-Agent"); ua != "" {
			input.UserAgent = &ua
		}
	}

	result, err := h.lockouts.RecordFailedAttempt(c.Request.Context(), tenantRef(c), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to record login attempt"))
		return
	}

	if result.Locked && h.metrics != nil {
		h.metrics.LockoutsTotal.Inc()
	}

	c.JSON(http.StatusOK, AttemptResultResponse{
		Locked:            result.Locked,
		RemainingAttempts: result.RemainingAttempts,
	})
}

// Status reports whether the given account is currently locked.
func (h *LockoutHandler) Status(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userID"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user id is required"))
		return
	}

	status, err := h.lockouts.IsLocked(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check lock status"))
		return
	}

	c.JSON(http.StatusOK, LockStatusResponse{
		Locked:      status.Locked,
		LockedUntil: status.LockedUntil,
	})
}

// Unlock clears an active lockout ahead of its expiry.
func (h *LockoutHandler) Unlock(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userID"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user id is required"))
		return
	}

	clearedBy, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || clearedBy == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return
	}

	if err := h.lockouts.ClearLockout(c.Request.Context(), userID, clearedBy); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to clear lockout"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Lockout cleared"})
}
