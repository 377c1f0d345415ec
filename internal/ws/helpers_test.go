package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"social-realtime/internal/auth"
	"social-realtime/internal/models"
)

func newTestClient(id string, userID int, role string) *Client {
	return NewClient(id, nil, &auth.Claims{UserID: userID, Role: role}, ConnInfo{ConnID: id, UserID: userID}, nil)
}

func newLimitedClient(id string, userID int, limiter *rate.Limiter) *Client {
	return NewClient(id, nil, &auth.Claims{UserID: userID, Role: models.RoleUser}, ConnInfo{ConnID: id, UserID: userID}, limiter)
}

// drain returns every frame queued for c without blocking.
func drain(t *testing.T, c *Client) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var env models.Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventsNamed(frames []models.Envelope, name string) []models.Envelope {
	var out []models.Envelope
	for _, f := range frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func envelope(t *testing.T, event, id string, data interface{}) models.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.Envelope{Event: event, ID: id, Data: raw}
}

func ctxBG() context.Context { return context.Background() }
