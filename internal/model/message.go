package model

import "time"

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message status constants.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Image is an image attachment persisted with a message.
type Image struct {
	URL           string `json:"url"`
	FileName      string `json:"file_name"`
	MIMEType      string `json:"mime_type"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// File is a document attachment persisted with a message.
type File struct {
	URL           string `json:"url"`
	FileName      string `json:"file_name"`
	MIMEType      string `json:"mime_type"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

type Message struct {
	ID      int64
	ChatID  int64
	Role    string
	Content string
	Images  []Image
	Files   []File

	// Model and Provider record what produced an assistant message; for
	// user messages they record the dispatch target.
	Model    string
	Provider string

	TokenCount int
	Status     string
	CreatedAt  time.Time
}
