package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/campusops/tenant-guard/internal/infra/logger"
	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// WhitelistGate rejects requests whose source address is not on the tenant's
// IP whitelist. Requests without a tenant, and tenants without entries, pass
// through untouched.
func WhitelistGate(whitelist *usecase.WhitelistService, metrics *telemetry.Metrics, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			c.Next()
			return
		}

		ip := c.ClientIP()
		allowed, err := whitelist.IsIPWhitelisted(c.Request.Context(), tenantID, ip)
		if err != nil {
			log.Error("whitelist check failed",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "whitelist check failed"))
			return
		}

		if !allowed {
			if metrics != nil {
				metrics.WhitelistDenials.Inc()
			}
			log.Warn("request rejected by ip whitelist",
				zap.String("tenant_id", tenantID),
				zap.String("client_ip", appLogger.MaskIP(ip)),
			)
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "source address not permitted for this tenant"))
			return
		}

		c.Next()
	}
}
