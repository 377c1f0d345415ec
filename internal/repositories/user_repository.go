package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-realtime/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads account attributes.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	FindDisplayName(ctx context.Context, userID int) (string, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, username, display_name, role, show_online_status, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// FindDisplayName returns the display name, or the username when none is set.
func (r *UserRepo) FindDisplayName(ctx context.Context, userID int) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT COALESCE(NULLIF(display_name, ''), username) FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return name, err
}
