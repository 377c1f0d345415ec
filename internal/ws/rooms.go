package ws

import (
	"context"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/observability"
	"social-realtime/internal/repositories"
)

// Rooms subscribes a freshly registered connection to its channels.
// Memberships are fixed for the connection's lifetime; group changes are
// picked up on reconnect.
type Rooms struct {
	hub    *Hub
	groups repositories.GroupRepository
}

// NewRooms constructs Rooms.
func NewRooms(hub *Hub, groups repositories.GroupRepository) *Rooms {
	return &Rooms{hub: hub, groups: groups}
}

// Join subscribes c to the personal channel, each group channel and, for
// administrators, the admin channel. A failed group lookup leaves the
// personal channel in place.
func (r *Rooms) Join(ctx context.Context, c *Client, userID int) []string {
	joined := []string{UserChannel(userID)}
	r.hub.Join(UserChannel(userID), c)
	if c.IsAdmin() {
		r.hub.Join(AdminChannel, c)
		joined = append(joined, AdminChannel)
	}

	groupIDs, err := r.groups.FindGroupIDsForUser(ctx, userID)
	if err != nil {
		observability.IncCollaboratorError("find_group_ids")
		log.Error().Err(err).Int("user_id", userID).Str("conn_id", c.ID()).Msg("group membership lookup failed")
		return joined
	}
	for _, id := range groupIDs {
		r.hub.Join(GroupChannel(id), c)
		joined = append(joined, GroupChannel(id))
	}
	return joined
}
