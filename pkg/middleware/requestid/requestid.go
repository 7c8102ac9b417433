package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware assigns a unique request ID to each incoming HTTP request,
// reusing an inbound X-Request-ID when the caller supplies one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerKey)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(headerKey, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
