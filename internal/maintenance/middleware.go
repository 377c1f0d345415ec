package maintenance

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware rejects non-administrative traffic while maintenance is on.
// Admin paths, auth paths and callers for which isAdmin reports true pass through;
// auth endpoints apply CheckSignIn themselves.
func Middleware(g *Gate, isAdmin func(*gin.Context) bool, exemptPrefixes ...string) gin.HandlerFunc {
	if len(exemptPrefixes) == 0 {
		exemptPrefixes = []string{"/admin", "/auth", "/healthz", "/metrics"}
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exemptPrefixes {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				c.Next()
				return
			}
		}
		if isAdmin != nil && isAdmin(c) {
			c.Next()
			return
		}
		if g.Enabled(c.Request.Context()) {
			Reject(c)
			return
		}
		c.Next()
	}
}

// Reject writes the distinguished maintenance response.
func Reject(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance", "maintenance": true})
}
