package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-realtime/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// userIDFromContext returns 0 for anonymous callers.
func userIDFromContext(c *gin.Context) int {
	if claims := middleware.ClaimsFrom(c); claims != nil {
		return claims.UserID
	}
	return 0
}
