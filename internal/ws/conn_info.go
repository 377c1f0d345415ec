package ws

import (
	"time"

	"github.com/google/uuid"

	"social-realtime/internal/observability"
)

// ConnInfo is the handshake-time description of a connection. It never changes
// after the upgrade; registration state lives in the Registry.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Admin       bool
	Meta        observability.RequestMeta
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}

// lifecycleEvent builds the ws_events envelope for a connect, disconnect or error.
func (i ConnInfo) lifecycleEvent(event, reason string, now time.Time) observability.EventEnvelope {
	return observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "realtime",
				"event":       event,
				"conn_id":     i.ConnID,
				"duration_ms": now.Sub(i.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":    i.UserID,
				"admin":      i.Admin,
				"device_id":  i.Meta.DeviceID,
				"ip":         i.Meta.IP,
				"user_agent": i.Meta.UserAgent,
			},
		},
	}
}

func (i ConnInfo) headers() map[string]string {
	return observability.BuildHeaders(i.Meta.RequestID, i.TraceID)
}
