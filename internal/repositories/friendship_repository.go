package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"social-realtime/internal/models"
)

// FriendshipRepository resolves accepted friendships.
type FriendshipRepository interface {
	FindAcceptedFriendIDs(ctx context.Context, userID int) ([]int, error)
}

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	db *sqlx.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sqlx.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

// FindAcceptedFriendIDs returns the other side of every accepted row the user appears in.
func (r *FriendshipRepo) FindAcceptedFriendIDs(ctx context.Context, userID int) ([]int, error) {
	query := `SELECT CASE WHEN user_id=$1 THEN friend_id ELSE user_id END AS id
        FROM friendships
        WHERE (user_id=$1 OR friend_id=$1) AND status=$2`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query, userID, models.FriendshipAccepted); err != nil {
		return nil, err
	}
	return dedupeInts(ids), nil
}

func dedupeInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
