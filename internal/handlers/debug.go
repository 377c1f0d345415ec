package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-realtime/internal/telemetry"
)

// ConnectionLister exposes a user's live connections.
type ConnectionLister interface {
	Connections(userID int) []string
	VisibleConnections(userID int) []string
}

// RegisterDebugRoutes wires dev-only endpoints for poking at audit publishing
// and the connection registry.
func RegisterDebugRoutes(router gin.IRouter, emitter *telemetry.AuditEmitter, conns ConnectionLister, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})

	router.GET("/debug/connections/:user_id", func(c *gin.Context) {
		userID, err := strconv.Atoi(c.Param("user_id"))
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		all := conns.Connections(userID)
		c.JSON(http.StatusOK, gin.H{
			"user_id":     userID,
			"online":      len(all) > 0,
			"connections": all,
			"visible":     conns.VisibleConnections(userID),
		})
	})
}
