package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message represents a persisted chat message, direct or group.
type Message struct {
	ID         int        `db:"id" json:"id"`
	SenderID   int        `db:"sender_id" json:"sender_id"`
	ReceiverID int        `db:"receiver_id" json:"receiver_id"`
	IsGroup    bool       `db:"is_group" json:"is_group"`
	Body       string     `db:"body" json:"body"`
	MediaURL   *string    `db:"media_url" json:"media_url,omitempty"`
	ReplyToID  *int       `db:"reply_to_id" json:"reply_to_id,omitempty"`
	Reactions  Reactions  `db:"reactions" json:"reactions"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// NewMessage holds the fields needed to insert a message row.
type NewMessage struct {
	SenderID   int
	ReceiverID int
	IsGroup    bool
	Body       string
	MediaURL   *string
	ReplyToID  *int
}

// Reactions maps an emoji to the ids of the users who reacted with it.
type Reactions map[string][]int

// Value implements driver.Valuer so reactions are stored as JSONB.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *Reactions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Reactions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("reactions: unsupported column type")
	}
	out := Reactions{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*r = out
	return nil
}
