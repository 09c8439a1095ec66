package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	tenantHeader     = "X-Tenant-ID"
	tenantContextKey = "tenantID"
)

// TenantMiddleware requires the X-Tenant-ID header on every request and
// stores the tenant in the gin context for handlers downstream.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := c.GetHeader(tenantHeader)
		if tenant == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing " + tenantHeader + " header",
			})
			return
		}
		c.Set(tenantContextKey, tenant)
		c.Next()
	}
}

// TenantID returns the tenant for the current request. Falls back to the
// raw header for middleware that runs before TenantMiddleware.
func TenantID(c *gin.Context) string {
	if v, ok := c.Get(tenantContextKey); ok {
		if tenant, ok := v.(string); ok {
			return tenant
		}
	}
	return c.GetHeader(tenantHeader)
}
