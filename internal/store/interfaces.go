package store

import (
	"context"
	"errors"

	"parley.app/server/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// UserStore defines the contract for user data access. Account creation
// lives with the identity provider; the backend only reads users.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// ChatStore defines the contract for chat data access
type ChatStore interface {
	GetByID(ctx context.Context, id int64) (*model.Chat, error)
	Create(ctx context.Context, chat *model.Chat) error
	ListByUser(ctx context.Context, userID int64) ([]model.Chat, error)
	// RecordMessage bumps the chat's message count and updated_at
	// atomically in the database, safe under concurrent sends.
	RecordMessage(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// MessageStore defines the contract for message data access
type MessageStore interface {
	// ListRecent returns the most recent limit messages in chronological order.
	ListRecent(ctx context.Context, chatID int64, limit int) ([]model.Message, error)
	Append(ctx context.Context, msg *model.Message) error
}

// ProjectStore defines the contract for project data access
type ProjectStore interface {
	GetByID(ctx context.Context, id int64) (*model.Project, error)
}

// UsageStore defines the contract for monthly usage counters
type UsageStore interface {
	GetMonthly(ctx context.Context, userID int64, month string) (int, error)
	// Increment adds one to the user's counter for the month. The update is
	// an atomic database-side increment, not read-modify-write.
	Increment(ctx context.Context, userID int64, month string) error
}
