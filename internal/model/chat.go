package model

import "time"

type Chat struct {
	ID        int64
	UserID    int64
	ProjectID *int64
	Title     string

	// Default model/provider for new messages; individual messages may
	// override both.
	Model    string
	Provider string

	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
