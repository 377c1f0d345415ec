package ws

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/models"
	"social-realtime/internal/observability"
)

// AdminChannel carries administrative aggregates such as the online count.
const AdminChannel = "admins"

// UserChannel is the personal channel of a user.
func UserChannel(userID int) string { return "user:" + strconv.Itoa(userID) }

// GroupChannel is the channel of a group.
func GroupChannel(groupID int) string { return "group:" + strconv.Itoa(groupID) }

// Hub maintains channel memberships and fans events out to them.
type Hub struct {
	mu          sync.RWMutex
	channels    map[string]map[*Client]bool
	memberships map[*Client]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		channels:    make(map[string]map[*Client]bool),
		memberships: make(map[*Client]map[string]bool),
	}
}

// Join subscribes a client to a channel.
func (h *Hub) Join(channel string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][c] = true
	if _, ok := h.memberships[c]; !ok {
		h.memberships[c] = make(map[string]bool)
	}
	h.memberships[c][channel] = true
}

// LeaveAll removes a client from every channel it joined.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel := range h.memberships[c] {
		if members, ok := h.channels[channel]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.memberships, c)
}

// InChannel reports whether the client is subscribed to channel.
func (h *Hub) InChannel(channel string, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.memberships[c][channel]
}

// Channels returns the channels a client belongs to.
func (h *Hub) Channels(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.memberships[c]))
	for channel := range h.memberships[c] {
		out = append(out, channel)
	}
	return out
}

// Emit sends an event to every member of channel except the given client and
// returns the number of successful deliveries.
func (h *Hub) Emit(channel, event string, data interface{}, except *Client) int {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		if c != except {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()
	if len(members) == 0 {
		return 0
	}

	payload, err := json.Marshal(models.OutboundEnvelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal outbound event")
		return 0
	}
	delivered := 0
	for _, c := range members {
		if c.Send(payload) {
			delivered++
		}
	}
	observability.IncWSEvent("out", event)
	return delivered
}

// EmitTo sends an event to a single client. id correlates a response with its request.
func (h *Hub) EmitTo(c *Client, event, id string, data interface{}) bool {
	payload, err := json.Marshal(models.OutboundEnvelope{Event: event, ID: id, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal outbound event")
		return false
	}
	observability.IncWSEvent("out", event)
	return c.Send(payload)
}
