package models

import (
	"encoding/json"
	"time"
)

// Inbound socket events.
const (
	EventRegisterUser      = "register_user"
	EventSendMessage       = "send_message"
	EventSendReaction      = "send_reaction"
	EventTyping            = "typing"
	EventCheckOnlineStatus = "check_online_status"
	EventUpdateVisibility  = "update_visibility"
)

// Outbound socket events.
const (
	EventUserStatusChanged = "user_status_changed"
	EventReceiveMessage    = "receive_message"
	EventUpdateReactions   = "update_reactions"
	EventIsTyping          = "is_typing"
	EventAdminOnlineCount  = "admin_online_count"
	EventOnlineStatus      = "online_status"
	EventError             = "error"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope frames every socket message. ID correlates a request with its response.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope is the server-to-client frame.
type OutboundEnvelope struct {
	Event string      `json:"event"`
	ID    string      `json:"id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

type RegisterUserEvent struct {
	UserID int `json:"userId"`
}

type SendMessageEvent struct {
	SenderID   int     `json:"senderId"`
	ReceiverID int     `json:"receiverId"`
	Message    string  `json:"message"`
	IsGroup    bool    `json:"isGroup"`
	MediaURL   *string `json:"mediaUrl,omitempty"`
	ReplyToID  *int    `json:"replyToId,omitempty"`
}

type SendReactionEvent struct {
	MessageID  int       `json:"messageId"`
	ReceiverID int       `json:"receiverId"`
	Reactions  Reactions `json:"reactions"`
	IsGroup    bool      `json:"isGroup"`
}

type TypingEvent struct {
	SenderID   int  `json:"senderId"`
	ReceiverID int  `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
	IsGroup    bool `json:"isGroup"`
}

type CheckOnlineStatusEvent struct {
	UserIDs []int `json:"userIds"`
}

type UpdateVisibilityEvent struct {
	Visible bool `json:"visible"`
}

type UserStatusChanged struct {
	UserID int    `json:"userId"`
	Status string `json:"status"`
}

// ChatMessagePayload is the receive_message body.
type ChatMessagePayload struct {
	ID           int       `json:"id"`
	SenderID     int       `json:"senderId"`
	SenderName   string    `json:"senderName"`
	Message      string    `json:"message"`
	MediaURL     *string   `json:"mediaUrl"`
	ReplyToID    *int      `json:"replyToId"`
	ReplySummary string    `json:"replySummary,omitempty"`
	ReceiverID   int       `json:"receiverId"`
	Timestamp    time.Time `json:"timestamp"`
	IsGroup      bool      `json:"isGroup"`
	Reactions    Reactions `json:"reactions"`
}

type ReactionsPayload struct {
	MessageID int       `json:"messageId"`
	Reactions Reactions `json:"reactions"`
}

type TypingPayload struct {
	SenderID   int  `json:"senderId"`
	ReceiverID int  `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
	IsGroup    bool `json:"isGroup"`
}

type OnlineStatusPayload struct {
	Statuses map[int]string `json:"statuses"`
}

type AdminOnlineCount struct {
	Count       int `json:"count"`
	Connections int `json:"connections"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
