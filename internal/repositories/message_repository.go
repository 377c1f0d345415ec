package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-realtime/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines the message writes and reads the relay needs.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	FindMessageSummary(ctx context.Context, messageID, senderID, receiverID int, isGroup bool) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// InsertMessage stores a message and returns the generated row.
func (r *MessageRepo) InsertMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, is_group, body, media_url, reply_to_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, sender_id, receiver_id, is_group, body, media_url, reply_to_id, reactions, created_at, deleted_at`,
		in.SenderID, in.ReceiverID, in.IsGroup, in.Body, in.MediaURL, in.ReplyToID).StructScan(&msg)
	return msg, err
}

// FindMessageSummary loads a reply target, but only from the conversation being
// written to: the same group, or the direct thread between senderID and receiverID.
// Messages from any other conversation, and soft-deleted ones, read as ErrMessageNotFound.
func (r *MessageRepo) FindMessageSummary(ctx context.Context, messageID, senderID, receiverID int, isGroup bool) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, sender_id, receiver_id, is_group, body, media_url, reply_to_id, reactions, created_at, deleted_at
        FROM messages
        WHERE id=$1 AND deleted_at IS NULL AND is_group=$4 AND (
            ($4 AND receiver_id=$3) OR
            (NOT $4 AND ((sender_id=$2 AND receiver_id=$3) OR (sender_id=$3 AND receiver_id=$2)))
        )`, messageID, senderID, receiverID, isGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
