package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campusops/tenant-guard/internal/core/domain"
	"github.com/campusops/tenant-guard/internal/transport/http/middleware"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// WhitelistHandler exposes tenant IP whitelist checks and administration.
type WhitelistHandler struct {
	whitelist *usecase.WhitelistService
}

func NewWhitelistHandler(whitelist *usecase.WhitelistService) *WhitelistHandler {
	return &WhitelistHandler{whitelist: whitelist}
}

// requireTenant pulls the tenant scope or writes a 400 response.
func requireTenant(c *gin.Context) (string, bool) {
	tenantID := strings.TrimSpace(middleware.GetTenantID(c))
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "tenant id header is required"))
		return "", false
	}
	return tenantID, true
}

// Check evaluates an address against the tenant whitelist. A tenant with no
// active entries allows every address.
func (h *WhitelistHandler) Check(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		ip = c.ClientIP()
	}

	allowed, err := h.whitelist.IsIPWhitelisted(c.Request.Context(), tenantID, ip)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check address"))
		return
	}

	c.JSON(http.StatusOK, WhitelistCheckResponse{Allowed: allowed})
}

// Create adds an address or CIDR block to the tenant whitelist.
func (h *WhitelistHandler) Create(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	var req WhitelistEntryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid whitelist entry payload"))
		return
	}

	entry, err := h.whitelist.CreateEntry(c.Request.Context(), tenantID, req.Address, req.Description)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidAddress, Status: http.StatusBadRequest, Message: "address must be an IPv4 address or CIDR block"},
		}, http.StatusInternalServerError, "failed to create whitelist entry")
		return
	}

	c.JSON(http.StatusCreated, whitelistEntryPayload(*entry))
}

// List returns every entry for the tenant, active or not.
func (h *WhitelistHandler) List(c *gin.Context) {
	tenantID, ok := requireTenant(c)
	if !ok {
		return
	}

	entries, err := h.whitelist.ListEntries(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list whitelist entries"))
		return
	}

	payload := make([]WhitelistEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, whitelistEntryPayload(entry))
	}

	c.JSON(http.StatusOK, payload)
}

// Update applies a partial update to an entry.
func (h *WhitelistHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Param("entryID"))
	if id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "entry id is required"))
		return
	}

	var req WhitelistEntryPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid whitelist patch payload"))
		return
	}

	patch := domain.IPWhitelistEntryPatch{
		Address:     req.Address,
		Description: req.Description,
		IsActive:    req.IsActive,
	}

	if err := h.whitelist.UpdateEntry(c.Request.Context(), id, patch); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWhitelistEntryNotFound, Status: http.StatusNotFound, Message: "whitelist entry not found"},
			{Err: usecase.ErrInvalidAddress, Status: http.StatusBadRequest, Message: "address must be an IPv4 address or CIDR block"},
		}, http.StatusInternalServerError, "failed to update whitelist entry")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Whitelist entry updated"})
}

// Delete removes an entry.
func (h *WhitelistHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("entryID"))
	if id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "entry id is required"))
		return
	}

	if err := h.whitelist.DeleteEntry(c.Request.Context(), id); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrWhitelistEntryNotFound, Status: http.StatusNotFound, Message: "whitelist entry not found"},
		}, http.StatusInternalServerError, "failed to delete whitelist entry")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Whitelist entry deleted"})
}
