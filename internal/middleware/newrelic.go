package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicErrors reports handler failures to the request's New Relic
// transaction. Handlers record failures with c.Error; nrgin owns the
// transaction lifecycle, so this must be registered after it. Without an
// open transaction it is a pass-through.
func NewRelicErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		for _, ginErr := range c.Errors {
			txn.NoticeError(ginErr.Err)
		}
	}
}
