package ws

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/models"
	"social-realtime/internal/observability"
	"social-realtime/internal/repositories"
)

// PresenceMirror receives the local 0<->1 connection edges of every user.
type PresenceMirror interface {
	UserOnline(ctx context.Context, userID int)
	UserOffline(ctx context.Context, userID int)
}

// MaintenanceState reports whether non-administrative traffic is suspended.
type MaintenanceState interface {
	Enabled(ctx context.Context) bool
}

// Dispatcher routes inbound socket events to the registry, presence and relay.
type Dispatcher struct {
	registry *Registry
	hub      *Hub
	rooms    *Rooms
	presence *Presence
	relay    *Relay
	users    repositories.UserRepository
	mirror   PresenceMirror
	gate     MaintenanceState
}

// NewDispatcher wires the realtime core. mirror and gate may be nil.
func NewDispatcher(registry *Registry, hub *Hub, rooms *Rooms, presence *Presence, relay *Relay, users repositories.UserRepository, mirror PresenceMirror, gate MaintenanceState) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		hub:      hub,
		rooms:    rooms,
		presence: presence,
		relay:    relay,
		users:    users,
		mirror:   mirror,
		gate:     gate,
	}
}

// Registry exposes the connection registry for read-only consumers.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Handle processes one inbound event. Failures stay inside this call.
func (d *Dispatcher) Handle(ctx context.Context, c *Client, env models.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("event", env.Event).Str("conn_id", c.ID()).Bytes("stack", debug.Stack()).Msg("event handler panic")
		}
	}()
	observability.IncWSEvent("in", env.Event)

	if !c.allow() {
		d.hub.EmitTo(c, models.EventError, env.ID, models.ErrorPayload{Code: "rate_limited", Message: "too many events"})
		return
	}
	if d.gate != nil && !c.IsAdmin() && d.gate.Enabled(ctx) {
		d.hub.EmitTo(c, models.EventError, env.ID, models.ErrorPayload{Code: "maintenance", Message: "system is under maintenance"})
		return
	}

	if env.Event == models.EventRegisterUser {
		var in models.RegisterUserEvent
		if !decode(c, env, &in) {
			return
		}
		d.Register(ctx, c, in.UserID)
		return
	}

	session, ok := d.registry.Session(c.ID())
	if !ok {
		d.hub.EmitTo(c, models.EventError, env.ID, models.ErrorPayload{Code: "unauthorized", Message: "register_user first"})
		return
	}

	switch env.Event {
	case models.EventSendMessage:
		var in models.SendMessageEvent
		if !decode(c, env, &in) || !d.senderMatches(c, session, in.SenderID) || !d.canReach(c, in.ReceiverID, in.IsGroup) {
			return
		}
		_, _ = d.relay.SendMessage(ctx, session.UserID, in)
	case models.EventSendReaction:
		var in models.SendReactionEvent
		if !decode(c, env, &in) || !d.canReach(c, in.ReceiverID, in.IsGroup) {
			return
		}
		d.relay.SendReaction(c, in)
	case models.EventTyping:
		var in models.TypingEvent
		if !decode(c, env, &in) || !d.senderMatches(c, session, in.SenderID) || !d.canReach(c, in.ReceiverID, in.IsGroup) {
			return
		}
		d.relay.Typing(c, session.UserID, in)
	case models.EventCheckOnlineStatus:
		ids, ok := decodeUserIDs(env.Data)
		if !ok {
			log.Debug().Str("conn_id", c.ID()).Msg("malformed check_online_status")
			return
		}
		statuses := d.presence.CheckOnlineStatus(ctx, session.UserID, ids)
		d.hub.EmitTo(c, models.EventOnlineStatus, env.ID, models.OnlineStatusPayload{Statuses: statuses})
	case models.EventUpdateVisibility:
		var in models.UpdateVisibilityEvent
		if !decode(c, env, &in) {
			return
		}
		d.UpdateVisibility(ctx, c, in.Visible)
	default:
		log.Debug().Str("event", env.Event).Str("conn_id", c.ID()).Msg("unknown event")
	}
}

// Register binds the connection to its authenticated user, joins its channels
// and announces the user when this is the first, visible connection.
func (d *Dispatcher) Register(ctx context.Context, c *Client, userID int) {
	if userID == 0 || userID != c.UserID() {
		log.Warn().Int("claimed", userID).Int("token_user", c.UserID()).Str("conn_id", c.ID()).Msg("register_user identity mismatch")
		d.hub.EmitTo(c, models.EventError, "", models.ErrorPayload{Code: "unauthorized", Message: "identity mismatch"})
		return
	}
	if _, ok := d.registry.Session(c.ID()); ok {
		return
	}

	visible := d.visibilityPreference(ctx, userID)
	d.rooms.Join(ctx, c, userID)
	first := d.registry.Register(userID, c.ID(), visible)
	log.Info().Int("user_id", userID).Str("conn_id", c.ID()).Bool("visible", visible).Bool("first", first).Msg("connection registered")

	if first {
		if d.mirror != nil {
			d.mirror.UserOnline(ctx, userID)
		}
		if visible {
			d.presence.Announce(ctx, userID, models.StatusOnline)
		}
	}
	d.broadcastOnlineCount()
}

// Disconnect removes the connection and announces the user offline once
// friends can no longer see any visible connection. Unknown connections are ignored.
func (d *Dispatcher) Disconnect(ctx context.Context, c *Client) {
	d.hub.LeaveAll(c)
	removal, ok := d.registry.Unregister(c.ID())
	if !ok {
		return
	}
	userID := removal.Session.UserID
	log.Info().Int("user_id", userID).Str("conn_id", c.ID()).Bool("offline", removal.Offline).Msg("connection unregistered")

	if removal.Offline && d.mirror != nil {
		d.mirror.UserOffline(ctx, userID)
	}
	if removal.AnnounceOffline {
		d.presence.Announce(ctx, userID, models.StatusOffline)
	}
	d.broadcastOnlineCount()
}

// UpdateVisibility changes the connection's visibility flag and announces
// the user when their visible state flips.
func (d *Dispatcher) UpdateVisibility(ctx context.Context, c *Client, visible bool) {
	change, ok := d.registry.SetVisibility(c.ID(), visible)
	if !ok {
		return
	}
	if change.Announce != "" {
		d.presence.Announce(ctx, change.Session.UserID, change.Announce)
	}
}

func (d *Dispatcher) broadcastOnlineCount() {
	users, conns := d.registry.Stats()
	observability.SetOnlineUsers(users)
	d.hub.Emit(AdminChannel, models.EventAdminOnlineCount, models.AdminOnlineCount{Count: users, Connections: conns}, nil)
}

func (d *Dispatcher) visibilityPreference(ctx context.Context, userID int) bool {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		observability.IncCollaboratorError("get_user")
		log.Error().Err(err).Int("user_id", userID).Msg("visibility lookup failed, registering hidden")
		return false
	}
	return user.ShowOnlineStatus
}

func (d *Dispatcher) senderMatches(c *Client, s Session, senderID int) bool {
	if senderID != 0 && senderID != s.UserID {
		log.Warn().Int("claimed", senderID).Int("user_id", s.UserID).Str("conn_id", c.ID()).Msg("sender mismatch, dropping event")
		return false
	}
	return true
}

// canReach only lets a connection address groups whose channel it joined.
func (d *Dispatcher) canReach(c *Client, receiverID int, isGroup bool) bool {
	if receiverID == 0 {
		return false
	}
	if isGroup && !d.hub.InChannel(GroupChannel(receiverID), c) {
		log.Warn().Int("group_id", receiverID).Str("conn_id", c.ID()).Msg("not a member of group channel, dropping event")
		return false
	}
	return true
}

func decode(c *Client, env models.Envelope, dst interface{}) bool {
	if len(env.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		log.Debug().Err(err).Str("event", env.Event).Str("conn_id", c.ID()).Msg("malformed event payload")
		return false
	}
	return true
}

// decodeUserIDs accepts either a bare array of ids or {"userIds": [...]}.
func decodeUserIDs(raw json.RawMessage) ([]int, bool) {
	var ids []int
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids, true
	}
	var in models.CheckOnlineStatusEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false
	}
	return in.UserIDs, true
}
