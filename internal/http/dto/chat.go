package dto

import (
	"time"

	"parley.app/server/internal/model"
)

type CreateChatRequest struct {
	Title     string `json:"title" binding:"required,min=1,max=255"`
	ProjectID *int64 `json:"project_id,string,omitempty"`
	Model     string `json:"model" binding:"required,max=128"`
	Provider  string `json:"provider" binding:"required,max=64"`
}

type ChatResponse struct {
	ID           int64     `json:"id,string"`
	ProjectID    *int64    `json:"project_id,string,omitempty"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToChatResponse(c *model.Chat) *ChatResponse {
	return &ChatResponse{
		ID:           c.ID,
		ProjectID:    c.ProjectID,
		Title:        c.Title,
		Model:        c.Model,
		Provider:     c.Provider,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type AttachmentImage struct {
	URL           string `json:"url" binding:"required,url,max=2048"`
	FileName      string `json:"file_name" binding:"max=512"`
	MIMEType      string `json:"mime_type" binding:"required,max=128"`
	FileSizeBytes int64  `json:"file_size_bytes" binding:"gte=0"`
}

type AttachmentFile struct {
	URL           string `json:"url" binding:"required,url,max=2048"`
	FileName      string `json:"file_name" binding:"required,max=512"`
	MIMEType      string `json:"mime_type" binding:"required,max=128"`
	FileSizeBytes int64  `json:"file_size_bytes" binding:"gte=0"`
}

type SendMessageRequest struct {
	Content  string            `json:"content" binding:"max=100000"`
	Images   []AttachmentImage `json:"images" binding:"omitempty,max=10,dive"`
	Files    []AttachmentFile  `json:"files" binding:"omitempty,max=10,dive"`
	Model    string            `json:"model" binding:"required,max=128"`
	Provider string            `json:"provider" binding:"required,max=64"`
}

type MessageResponse struct {
	ID         int64     `json:"id,string"`
	ChatID     int64     `json:"chat_id,string"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	TokenCount int       `json:"token_count,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func ToMessageResponse(m *model.Message) *MessageResponse {
	return &MessageResponse{
		ID:         m.ID,
		ChatID:     m.ChatID,
		Role:       m.Role,
		Content:    m.Content,
		Model:      m.Model,
		Provider:   m.Provider,
		TokenCount: m.TokenCount,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
	}
}

type SendMessageResponse struct {
	Message *MessageResponse `json:"message"`
	Usage   UsageResponse    `json:"usage"`
}

type UsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func ToImages(images []AttachmentImage) []model.Image {
	out := make([]model.Image, 0, len(images))
	for _, img := range images {
		out = append(out, model.Image{
			URL:           img.URL,
			FileName:      img.FileName,
			MIMEType:      img.MIMEType,
			FileSizeBytes: img.FileSizeBytes,
		})
	}
	return out
}

func ToFiles(files []AttachmentFile) []model.File {
	out := make([]model.File, 0, len(files))
	for _, f := range files {
		out = append(out, model.File{
			URL:           f.URL,
			FileName:      f.FileName,
			MIMEType:      f.MIMEType,
			FileSizeBytes: f.FileSizeBytes,
		})
	}
	return out
}
