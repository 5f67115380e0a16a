package middlewares

import (
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware assigns each request a correlation id, honoring one
// supplied by the caller, and echoes it on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.GetHeader(correlationHeader)
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationHeader, correlationId)

		c.Next()
	}
}
