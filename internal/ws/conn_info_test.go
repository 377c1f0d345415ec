package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-realtime/internal/observability"
)

func TestLifecycleEvent(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	info := ConnInfo{
		ConnID:      "c1",
		UserID:      7,
		Meta:        observability.RequestMeta{RequestID: "req-1", IP: "1.2.3.4"},
		TraceID:     "trace-1",
		ConnectedAt: start,
	}

	env := info.lifecycleEvent("ws_disconnect", "EOF", start.Add(1500*time.Millisecond))
	assert.Equal(t, "ws_events", env.EventType)
	assert.Equal(t, "ws_disconnect", env.EventName)
	payload, ok := env.Payload.(map[string]interface{})
	require.True(t, ok)
	wsPart := payload["ws"].(map[string]interface{})
	assert.EqualValues(t, 1500, wsPart["duration_ms"])
	assert.Equal(t, "EOF", wsPart["reason"])
	assert.Equal(t, 7, payload["identity"].(map[string]interface{})["user_id"])

	assert.Equal(t, map[string]string{"x-request-id": "req-1", "trace_id": "trace-1"}, info.headers())
}

func TestNewConnIDIsUnique(t *testing.T) {
	assert.NotEqual(t, newConnID(), newConnID())
}
