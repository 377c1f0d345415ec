package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the subset of the account row the realtime layer reads.
type User struct {
	ID               int       `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	DisplayName      string    `db:"display_name" json:"display_name"`
	Role             string    `db:"role" json:"role"`
	ShowOnlineStatus bool      `db:"show_online_status" json:"show_online_status"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Friendship statuses. Only accepted pairs count as friends for presence.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
	FriendshipBlocked  = "blocked"
)
