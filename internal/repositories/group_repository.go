package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// GroupRepository exposes group membership to the realtime layer.
type GroupRepository interface {
	FindGroupIDsForUser(ctx context.Context, userID int) ([]int, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// FindGroupIDsForUser returns every group the user belongs to.
func (r *GroupRepo) FindGroupIDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT group_id FROM group_members WHERE user_id=$1 ORDER BY group_id`, userID)
	return ids, err
}
