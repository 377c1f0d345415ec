package ws

import (
	"context"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/models"
	"social-realtime/internal/observability"
	"social-realtime/internal/repositories"
)

// Presence announces status transitions to friends and answers status queries.
// Nothing is ever disclosed outside the accepted-friend set.
type Presence struct {
	registry *Registry
	hub      *Hub
	friends  repositories.FriendshipRepository
}

// NewPresence constructs Presence.
func NewPresence(registry *Registry, hub *Hub, friends repositories.FriendshipRepository) *Presence {
	return &Presence{registry: registry, hub: hub, friends: friends}
}

// Announce emits user_status_changed for userID to every online friend and
// returns how many friends were notified. Lookup failures skip the broadcast.
func (p *Presence) Announce(ctx context.Context, userID int, status string) int {
	friendIDs, err := p.friends.FindAcceptedFriendIDs(ctx, userID)
	if err != nil {
		observability.IncCollaboratorError("find_friend_ids")
		log.Error().Err(err).Int("user_id", userID).Str("status", status).Msg("presence broadcast skipped")
		return 0
	}

	payload := models.UserStatusChanged{UserID: userID, Status: status}
	notified := 0
	for _, friendID := range friendIDs {
		if !p.registry.IsOnline(friendID) {
			continue
		}
		if p.hub.Emit(UserChannel(friendID), models.EventUserStatusChanged, payload, nil) > 0 {
			notified++
		}
	}
	observability.IncPresenceBroadcast(status)
	log.Debug().Int("user_id", userID).Str("status", status).Int("friends_notified", notified).Msg("presence announced")
	return notified
}

// CheckOnlineStatus reports a status for each requested id. Only the
// requester and friends with a visible live connection can be online; every
// other id reads offline regardless of its real state.
func (p *Presence) CheckOnlineStatus(ctx context.Context, requesterID int, userIDs []int) map[int]string {
	friendSet := map[int]struct{}{}
	friendIDs, err := p.friends.FindAcceptedFriendIDs(ctx, requesterID)
	if err != nil {
		observability.IncCollaboratorError("find_friend_ids")
		log.Error().Err(err).Int("user_id", requesterID).Msg("online status friend lookup failed")
	}
	for _, id := range friendIDs {
		friendSet[id] = struct{}{}
	}

	statuses := make(map[int]string, len(userIDs))
	for _, id := range userIDs {
		statuses[id] = models.StatusOffline
		if id == requesterID {
			if p.registry.IsOnline(id) {
				statuses[id] = models.StatusOnline
			}
			continue
		}
		if _, ok := friendSet[id]; !ok {
			continue
		}
		if len(p.registry.VisibleConnections(id)) > 0 {
			statuses[id] = models.StatusOnline
		}
	}
	return statuses
}
