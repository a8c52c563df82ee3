package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// QuotaHandler exposes quota checks, usage tracking, and limit administration.
type QuotaHandler struct {
	quotas *usecase.QuotaService
}

func NewQuotaHandler(quotas *usecase.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotas: quotas}
}

// Check reports whether the tenant may consume the resource right now. The
// optional amount query parameter sizes the prospective consumption, one unit
// by default.
func (h *QuotaHandler) Check(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	resourceType := strings.TrimSpace(c.Query("resource_type"))
	if resourceType == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resource_type query parameter is required"))
		return
	}

	amount := int64(1)
	if raw := strings.TrimSpace(c.Query("amount")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "amount must be a positive integer"))
			return
		}
		amount = parsed
	}

	decision, err := h.quotas.CheckQuota(c.Request.Context(), tenantID, resourceType, amount)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check quota"))
		return
	}

	c.JSON(http.StatusOK, QuotaDecisionResponse{
		Allowed:   decision.Allowed,
		Unlimited: decision.Unlimited,
		Remaining: decision.Remaining,
		Warning:   decision.Warning,
	})
}

// Increment consumes quota units for the tenant. Amount defaults to one.
func (h *QuotaHandler) Increment(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req QuotaIncrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid usage payload"))
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	if err := h.quotas.IncrementUsage(c.Request.Context(), tenantID, req.ResourceType, req.Amount); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidQuotaLimit, Status: http.StatusBadRequest, Message: "usage amount must be positive"},
		}, http.StatusInternalServerError, "failed to record usage")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Usage recorded"})
}

// SetLimit creates or replaces the limit row for a resource type. Current
// usage and the reset anchor survive replacement.
func (h *QuotaHandler) SetLimit(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req QuotaLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid quota limit payload"))
		return
	}

	limit, err := h.quotas.SetLimit(c.Request.Context(), domain.QuotaLimit{
		TenantID:         tenantID,
		ResourceType:     req.ResourceType,
		LimitValue:       req.LimitValue,
		ResetPeriod:      domain.QuotaResetPeriod(req.ResetPeriod),
		WarningThreshold: req.WarningThreshold,
		IsEnforced:       req.IsEnforced,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidQuotaLimit, Status: http.StatusBadRequest, Message: "quota limit values are invalid"},
		}, http.StatusInternalServerError, "failed to save quota limit")
		return
	}

	c.JSON(http.StatusOK, quotaLimitPayload(*limit))
}

// PatchLimit applies a partial update to an existing limit row.
func (h *QuotaHandler) PatchLimit(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	resourceType := strings.TrimSpace(c.Param("resourceType"))
	if resourceType == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resource type is required"))
		return
	}

	var req QuotaLimitPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid quota patch payload"))
		return
	}

	patch := domain.QuotaLimitPatch{
		LimitValue:            req.LimitValue,
		WarningThreshold:      req.WarningThreshold,
		ClearWarningThreshold: req.ClearWarningThreshold,
		IsEnforced:            req.IsEnforced,
	}
	if req.ResetPeriod != nil {
		period := domain.QuotaResetPeriod(*req.ResetPeriod)
		patch.ResetPeriod = &period
	}

	if err := h.quotas.PatchLimit(c.Request.Context(), tenantID, resourceType, patch); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrQuotaNotFound, Status: http.StatusNotFound, Message: "quota limit not found"},
			{Err: usecase.ErrInvalidQuotaLimit, Status: http.StatusBadRequest, Message: "quota limit values are invalid"},
		}, http.StatusInternalServerError, "failed to update quota limit")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Quota limit updated"})
}

// GetLimit returns the limit row for a resource type.
func (h *QuotaHandler) GetLimit(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	resourceType := strings.TrimSpace(c.Param("resourceType"))
	if resourceType == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resource type is required"))
		return
	}

	limit, err := h.quotas.GetLimit(c.Request.Context(), tenantID, resourceType)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrQuotaNotFound, Status: http.StatusNotFound, Message: "quota limit not found"},
		}, http.StatusInternalServerError, "failed to load quota limit")
		return
	}

	c.JSON(http.StatusOK, quotaLimitPayload(*limit))
}

// ListLimits returns every limit row for the tenant.
func (h *QuotaHandler) ListLimits(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	limits, err := h.quotas.ListLimits(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list quota limits"))
		return
	}

	payload := make([]QuotaLimitPayload, 0, len(limits))
	for _, limit := range limits {
		payload = append(payload, quotaLimitPayload(limit))
	}

	c.JSON(http.StatusOK, payload)
}

// UsageLogs returns reset snapshots for a resource type, newest first.
func (h *QuotaHandler) UsageLogs(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	resourceType := strings.TrimSpace(c.Query("resource_type"))
	if resourceType == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resource_type query parameter is required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	logs, err := h.quotas.ListUsageLogs(c.Request.Context(), tenantID, resourceType, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list usage logs"))
		return
	}

	payload := make([]QuotaUsageLogPayload, 0, len(logs))
	for _, log := range logs {
		payload = append(payload, QuotaUsageLogPayload{
			ID:           log.ID,
			ResourceType: log.ResourceType,
			Amount:       log.Amount,
			PeriodStart:  log.PeriodStart,
			PeriodEnd:    log.PeriodEnd,
		})
	}

	c.JSON(http.StatusOK, payload)
}
