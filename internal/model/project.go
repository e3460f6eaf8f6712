package model

import "time"

// Project groups chats and carries the context injected into every
// conversation that belongs to it. All four context fields are optional;
// empty means absent.
type Project struct {
	ID     int64
	UserID int64
	Name   string

	// Injection order when sending a message: FileContext, SystemPrompt,
	// SharedContext, Instructions. Most specific last so it sits nearest
	// the conversation; providers without a separate system field rely on
	// this sequence order to infer priority.
	FileContext   string
	SystemPrompt  string
	SharedContext string
	Instructions  string

	CreatedAt time.Time
	UpdatedAt time.Time
}
