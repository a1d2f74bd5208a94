package domain

import "time"

// UserStatus tracks where a user is in the subscription creation flow.
type UserStatus int

const (
	// StatusIdle means no flow is in progress.
	StatusIdle UserStatus = 0
	// StatusAwaitingName means the next text message is taken as a subscription name.
	StatusAwaitingName UserStatus = 1
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == StatusIdle || s == StatusAwaitingName
}

func (s UserStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingName:
		return "awaiting_name"
	default:
		return "unknown"
	}
}

// User represents a LINE user that has messaged the bot.
type User struct {
	LineID      string     `bson:"line_id" json:"line_id"`
	DisplayName string     `bson:"display_name" json:"display_name"`
	Status      UserStatus `bson:"status" json:"status"`
	Role        string     `bson:"role" json:"role"`
	GroupID     string     `bson:"group_id" json:"group_id"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}
