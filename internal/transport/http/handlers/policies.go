package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/transport/http/middleware"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// PolicyHandler exposes password policy evaluation and administration.
type PolicyHandler struct {
	policies *usecase.PasswordPolicyService
	metrics  *telemetry.Metrics
}

func NewPolicyHandler(policies *usecase.PasswordPolicyService, metrics *telemetry.Metrics) *PolicyHandler {
	return &PolicyHandler{policies: policies, metrics: metrics}
}

// tenantRef resolves the tenant scope from the request. A missing header
// means the global default scope.
func tenantRef(c *gin.Context) *string {
	tenantID := strings.TrimSpace(middleware.GetTenantID(c))
	if tenantID == "" {
		return nil
	}
	return &tenantID
}

// EvaluatePassword checks a candidate password against the tenant policy and,
// when a user ID is supplied, the reuse-prevention history.
func (h *PolicyHandler) EvaluatePassword(c *gin.Context) {
	var req PasswordEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password evaluation payload"))
		return
	}

	tenantID := tenantRef(c)

	policy, err := h.policies.ResolvePolicy(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resolve password policy"))
		return
	}

	result := h.policies.Evaluate(req.Password, policy)

	resp := PasswordEvaluateResponse{
		Valid:      result.Valid,
		Violations: make([]ViolationPayload, 0, len(result.Violations)),
		Score:      result.Score,
	}
	for _, v := range result.Violations {
		resp.Violations = append(resp.Violations, ViolationPayload{Code: v.Code, Message: v.Message})
	}

	if userID := strings.TrimSpace(req.UserID); userID != "" {
		reused, err := h.policies.IsReused(c.Request.Context(), userID, req.Password, policy.PreventReuseCount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check password history"))
			return
		}
		resp.Reused = &reused
		if reused {
			resp.Valid = false
			resp.Violations = append(resp.Violations, ViolationPayload{
				Code:    "reused",
				Message: "password was used recently",
			})
		}
	}

	if h.metrics != nil {
		outcome := "valid"
		if !resp.Valid {
			outcome = "invalid"
		}
		h.metrics.PolicyEvaluations.WithLabelValues(outcome).Inc()
	}

	c.JSON(http.StatusOK, resp)
}

// GetPolicy returns the effective policy for the request scope, falling back
// through the default row to the built-in policy.
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policy, err := h.policies.ResolvePolicy(c.Request.Context(), tenantRef(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to resolve password policy"))
		return
	}

	c.JSON(http.StatusOK, policyPayload(policy))
}

// UpsertPolicy creates or replaces the policy for the request scope.
func (h *PolicyHandler) UpsertPolicy(c *gin.Context) {
	var req PasswordPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy payload"))
		return
	}

	policy := domain.PasswordPolicy{
		TenantID:               tenantRef(c),
		MinLength:              req.MinLength,
		RequireUppercase:       req.RequireUppercase,
		RequireLowercase:       req.RequireLowercase,
		RequireNumber:          req.RequireNumber,
		RequireSpecial:         req.RequireSpecial,
		MaxAgeDays:             req.MaxAgeDays,
		PreventReuseCount:      req.PreventReuseCount,
		LockoutAttempts:        req.LockoutAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
	}

	if err := h.policies.UpsertPolicy(c.Request.Context(), policy); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidPolicy, Status: http.StatusBadRequest, Message: "policy values are invalid"},
		}, http.StatusInternalServerError, "failed to save policy")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Policy saved"})
}

// PatchPolicy applies a partial update to the policy for the request scope.
func (h *PolicyHandler) PatchPolicy(c *gin.Context) {
	var req PasswordPolicyPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy patch payload"))
		return
	}

	patch := domain.PasswordPolicyPatch{
		MinLength:              req.MinLength,
		RequireUppercase:       req.RequireUppercase,
		RequireLowercase:       req.RequireLowercase,
		RequireNumber:          req.RequireNumber,
		RequireSpecial:         req.RequireSpecial,
		MaxAgeDays:             req.MaxAgeDays,
		PreventReuseCount:      req.PreventReuseCount,
		LockoutAttempts:        req.LockoutAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
	}

	if err := h.policies.PatchPolicy(c.Request.Context(), tenantRef(c), patch); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidPolicy, Status: http.StatusBadRequest, Message: "policy values are invalid"},
		}, http.StatusInternalServerError, "failed to update policy")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Policy updated"})
}

// RecordPassword appends a password hash to the user's history and trims the
// retained window to the policy's reuse count.
func (h *PolicyHandler) RecordPassword(c *gin.Context) {
	var req PasswordRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password record payload"))
		return
	}

	if err := h.policies.RecordPassword(c.Request.Context(), tenantRef(c), req.UserID, req.PasswordHash); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidPolicy, Status: http.StatusBadRequest, Message: "password record values are invalid"},
		}, http.StatusInternalServerError, "failed to record password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Password recorded"})
}
