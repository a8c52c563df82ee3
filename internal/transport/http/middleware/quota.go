package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// QuotaGate denies requests once the tenant's quota for resourceType is
// exhausted and the limit is enforced. Allowed requests consume one unit.
func QuotaGate(quotas *usecase.QuotaService, resourceType string, metrics *telemetry.Metrics, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		tenantID := GetTenantID(c)
		if tenantID == "" {
			c.Next()
			return
		}

		decision, err := quotas.CheckQuota(c.Request.Context(), tenantID, resourceType, 1)
		if err != nil {
			log.Error("quota check failed",
				zap.String("tenant_id", tenantID),
				zap.String("resource_type", resourceType),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "quota check failed"))
			return
		}

		if !decision.Unlimited {
			c.Header("X-Quota-Remaining", strconv.FormatInt(decision.Remaining, 10))
		}
		if decision.Warning {
			c.Header("X-Quota-Warning", "true")
		}

		if !decision.Allowed {
			if metrics != nil {
				metrics.QuotaDenials.WithLabelValues(resourceType).Inc()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				newErrorResponse(c, "quota exhausted for "+resourceType))
			return
		}

		c.Next()

		// Only successful requests consume quota.
		if c.Writer.Status() < http.StatusBadRequest && !decision.Unlimited {
			if err := quotas.IncrementUsage(c.Request.Context(), tenantID, resourceType, 1); err != nil {
				log.Warn("quota increment failed",
					zap.String("tenant_id", tenantID),
					zap.String("resource_type", resourceType),
					zap.Error(err),
				)
			}
		}
	}
}
