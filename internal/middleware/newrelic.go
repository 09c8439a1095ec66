package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicTenantAttribute tags the current New Relic transaction with the
// request's tenant, so traces can be filtered per tenant. Runs after
// TenantMiddleware inside the nrgin-instrumented chain; without an active
// transaction it is a no-op.
func NewRelicTenantAttribute() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if tenant := TenantID(c); tenant != "" {
				txn.AddAttribute("tenant.id", tenant)
			}
		}
		c.Next()
	}
}
