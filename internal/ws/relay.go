package ws

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"social-realtime/internal/models"
	"social-realtime/internal/observability"
	"social-realtime/internal/repositories"
	"social-realtime/internal/telemetry"
)

const (
	ReplyMediaPlaceholder   = "📎 Media"
	ReplyDeletedPlaceholder = "Message deleted"
	unknownSenderName       = "Unknown user"
)

// Relay persists chat messages and fans messages, reactions and typing
// indicators out to their channels.
type Relay struct {
	hub      *Hub
	messages repositories.MessageRepository
	users    repositories.UserRepository
	audit    *telemetry.AuditEmitter
}

// NewRelay constructs a Relay. audit may be nil.
func NewRelay(hub *Hub, messages repositories.MessageRepository, users repositories.UserRepository, audit *telemetry.AuditEmitter) *Relay {
	return &Relay{hub: hub, messages: messages, users: users, audit: audit}
}

// SendMessage persists and delivers a message, returning the channels it was
// emitted to. Empty messages without media are dropped without error. Nothing
// is emitted unless the insert succeeds.
func (r *Relay) SendMessage(ctx context.Context, senderID int, in models.SendMessageEvent) ([]string, error) {
	hasMedia := in.MediaURL != nil && strings.TrimSpace(*in.MediaURL) != ""
	if strings.TrimSpace(in.Message) == "" && !hasMedia {
		return nil, nil
	}
	var mediaURL *string
	if hasMedia {
		mediaURL = in.MediaURL
	}

	var replyToID *int
	var replySummary string
	if in.ReplyToID != nil {
		var found bool
		replySummary, found = r.ReplySummary(ctx, senderID, in.ReceiverID, in.IsGroup, *in.ReplyToID)
		if found {
			replyToID = in.ReplyToID
		}
	}

	msg, err := r.messages.InsertMessage(ctx, models.NewMessage{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		IsGroup:    in.IsGroup,
		Body:       in.Message,
		MediaURL:   mediaURL,
		ReplyToID:  replyToID,
	})
	if err != nil {
		observability.IncCollaboratorError("insert_message")
		log.Error().Err(err).Int("sender_id", senderID).Int("receiver_id", in.ReceiverID).Bool("is_group", in.IsGroup).Msg("message persist failed")
		r.audit.Emit(ctx, "ERROR", "message persist failed", "", senderID)
		return nil, err
	}

	senderName, err := r.users.FindDisplayName(ctx, senderID)
	if err != nil {
		log.Warn().Err(err).Int("sender_id", senderID).Msg("sender name lookup failed")
		senderName = unknownSenderName
	}

	payload := models.ChatMessagePayload{
		ID:           msg.ID,
		SenderID:     senderID,
		SenderName:   senderName,
		Message:      msg.Body,
		MediaURL:     mediaURL,
		ReplyToID:    replyToID,
		ReplySummary: replySummary,
		ReceiverID:   in.ReceiverID,
		Timestamp:    msg.CreatedAt,
		IsGroup:      in.IsGroup,
		Reactions:    models.Reactions{},
	}

	targets := messageTargets(senderID, in.ReceiverID, in.IsGroup)
	for _, channel := range targets {
		r.hub.Emit(channel, models.EventReceiveMessage, payload, nil)
	}
	return targets, nil
}

// ReplySummary describes the message being replied to. Targets outside the
// conversation between senderID and receiverID read as deleted; found reports
// whether the target exists there and may be referenced.
func (r *Relay) ReplySummary(ctx context.Context, senderID, receiverID int, isGroup bool, messageID int) (summary string, found bool) {
	msg, err := r.messages.FindMessageSummary(ctx, messageID, senderID, receiverID, isGroup)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return ReplyDeletedPlaceholder, false
	}
	if err != nil {
		observability.IncCollaboratorError("find_message_summary")
		log.Warn().Err(err).Int("reply_to_id", messageID).Msg("reply summary lookup failed")
		return ReplyDeletedPlaceholder, true
	}
	if body := strings.TrimSpace(msg.Body); body != "" {
		return body, true
	}
	if msg.MediaURL != nil && *msg.MediaURL != "" {
		return ReplyMediaPlaceholder, true
	}
	return ReplyDeletedPlaceholder, true
}

// SendReaction relays an updated reaction map. Direct reactions are echoed to
// the sending connection as well.
func (r *Relay) SendReaction(sender *Client, in models.SendReactionEvent) []string {
	payload := models.ReactionsPayload{MessageID: in.MessageID, Reactions: in.Reactions}
	if payload.Reactions == nil {
		payload.Reactions = models.Reactions{}
	}
	if in.IsGroup {
		channel := GroupChannel(in.ReceiverID)
		r.hub.Emit(channel, models.EventUpdateReactions, payload, nil)
		return []string{channel}
	}
	channel := UserChannel(in.ReceiverID)
	r.hub.Emit(channel, models.EventUpdateReactions, payload, sender)
	r.hub.EmitTo(sender, models.EventUpdateReactions, "", payload)
	return []string{channel}
}

// Typing relays a typing indicator to the target channel, never back to the sender's connection.
func (r *Relay) Typing(sender *Client, senderID int, in models.TypingEvent) string {
	channel := UserChannel(in.ReceiverID)
	if in.IsGroup {
		channel = GroupChannel(in.ReceiverID)
	}
	r.hub.Emit(channel, models.EventIsTyping, models.TypingPayload{
		SenderID:   senderID,
		ReceiverID: in.ReceiverID,
		IsTyping:   in.IsTyping,
		IsGroup:    in.IsGroup,
	}, sender)
	return channel
}

func messageTargets(senderID, receiverID int, isGroup bool) []string {
	if isGroup {
		return []string{GroupChannel(receiverID)}
	}
	if senderID == receiverID {
		return []string{UserChannel(senderID)}
	}
	return []string{UserChannel(receiverID), UserChannel(senderID)}
}
