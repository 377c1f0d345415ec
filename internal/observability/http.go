package observability

import "github.com/gin-gonic/gin"

// RequestMeta is the caller identity attached to lifecycle and audit events.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
	UserAgent string
}

// RequestMetaFrom reads the caller identity. IP comes from gin's ClientIP, so
// forwarding headers only count when the peer is a trusted proxy.
func RequestMetaFrom(c *gin.Context) RequestMeta {
	return RequestMeta{
		RequestID: c.GetHeader("X-Request-Id"),
		DeviceID:  c.GetHeader("X-Device-Id"),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
