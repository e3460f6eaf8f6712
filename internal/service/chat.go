package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parley.app/server/common/id"
	"parley.app/server/common/llm"
	"parley.app/server/common/logger"
	"parley.app/server/internal/model"
	"parley.app/server/internal/store"
)

// historyWindow bounds how many persisted turns accompany each dispatch.
const historyWindow = 20

type SendMessageInput struct {
	ChatID   int64
	UserID   int64
	Content  string
	Images   []model.Image
	Files    []model.File
	Model    string
	Provider string
}

type SendMessageResult struct {
	Message *model.Message
	Usage   llm.Usage
}

// ChatService is the top-level entry point for conversation traffic.
type ChatService interface {
	SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error)
	CreateChat(ctx context.Context, userID int64, projectID *int64, title, modelID, providerID string) (*model.Chat, error)
	ListChats(ctx context.Context, userID int64) ([]model.Chat, error)
	DeleteChat(ctx context.Context, chatID, userID int64) error
	GetMessages(ctx context.Context, chatID, userID int64, limit int) ([]model.Message, error)
}

// Normalizer and Dispatcher are the orchestration collaborators; interfaces
// here so tests can substitute fakes.
type Normalizer interface {
	Normalize(ctx context.Context, turns []llm.Turn, providerID, modelID string) (*llm.Payload, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, payload *llm.Payload) (*llm.Result, error)
}

type chatService struct {
	users      store.UserStore
	chats      store.ChatStore
	messages   store.MessageStore
	projects   store.ProjectStore
	usage      store.UsageStore
	normalizer Normalizer
	dispatcher Dispatcher

	freeTierMonthlyMessages int
	now                     func() time.Time
}

func NewChatService(
	users store.UserStore,
	chats store.ChatStore,
	messages store.MessageStore,
	projects store.ProjectStore,
	usage store.UsageStore,
	normalizer Normalizer,
	dispatcher Dispatcher,
	freeTierMonthlyMessages int,
) ChatService {
	if freeTierMonthlyMessages <= 0 {
		freeTierMonthlyMessages = 10
	}
	return &chatService{
		users:                   users,
		chats:                   chats,
		messages:                messages,
		projects:                projects,
		usage:                   usage,
		normalizer:              normalizer,
		dispatcher:              dispatcher,
		freeTierMonthlyMessages: freeTierMonthlyMessages,
		now:                     time.Now,
	}
}

// SendMessage runs the full conversation flow: ownership and quota checks,
// history load, project context injection, normalization, dispatch,
// persistence, and a single usage increment on success.
func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(in.UserID),
		ChatID:    logger.Ptr(in.ChatID),
		Provider:  logger.Ptr(in.Provider),
		Model:     logger.Ptr(in.Model),
		Component: "parley.service.chat",
	})

	if in.Content == "" && len(in.Images) == 0 && len(in.Files) == 0 {
		return nil, ErrEmptyMessage
	}

	chat, err := s.chats.GetByID(ctx, in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading chat: %w", err)
	}
	if chat.UserID != in.UserID {
		slog.WarnContext(ctx, "chat ownership check failed", "owner_id", chat.UserID)
		return nil, ErrPermissionDenied
	}

	if err := s.checkQuota(ctx, in.UserID); err != nil {
		return nil, err
	}

	history, err := s.messages.ListRecent(ctx, in.ChatID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	turns, err := s.buildTurns(ctx, chat, history, in)
	if err != nil {
		return nil, err
	}

	payload, err := s.normalizer.Normalize(ctx, turns, in.Provider, in.Model)
	if err != nil {
		return nil, fmt.Errorf("normalizing request: %w", err)
	}

	result, err := s.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		slog.ErrorContext(ctx, "provider dispatch failed", "error", err)
		return nil, fmt.Errorf("dispatching to provider: %w", err)
	}

	userMsg := &model.Message{
		ID:       id.New(),
		ChatID:   in.ChatID,
		Role:     model.RoleUser,
		Content:  in.Content,
		Images:   in.Images,
		Files:    in.Files,
		Model:    in.Model,
		Provider: in.Provider,
		Status:   model.StatusComplete,
	}
	if err := s.messages.Append(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	assistantMsg := &model.Message{
		ID:         id.New(),
		ChatID:     in.ChatID,
		Role:       model.RoleAssistant,
		Content:    result.Content,
		Model:      in.Model,
		Provider:   in.Provider,
		TokenCount: result.Usage.TotalTokens,
		Status:     model.StatusComplete,
	}
	if err := s.messages.Append(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persisting assistant message: %w", err)
	}

	if err := s.chats.RecordMessage(ctx, in.ChatID); err != nil {
		slog.WarnContext(ctx, "failed to bump chat message count", "error", err)
	}

	// Exactly one increment per successfully dispatched and persisted
	// message; failed dispatches never charge the user.
	if err := s.usage.Increment(ctx, in.UserID, s.monthKey()); err != nil {
		slog.ErrorContext(ctx, "failed to increment usage counter", "error", err)
	}

	slog.InfoContext(ctx, "message dispatched",
		"total_tokens", result.Usage.TotalTokens)

	return &SendMessageResult{
		Message: assistantMsg,
		Usage:   result.Usage,
	}, nil
}

func (s *chatService) checkQuota(ctx context.Context, userID int64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading user: %w", err)
	}
	if user.Plan != model.PlanFree {
		return nil
	}

	used, err := s.usage.GetMonthly(ctx, userID, s.monthKey())
	if err != nil {
		return fmt.Errorf("loading usage counter: %w", err)
	}
	if used >= s.freeTierMonthlyMessages {
		slog.InfoContext(ctx, "free tier quota exhausted", "messages_this_month", used)
		return ErrQuotaExceeded
	}
	return nil
}

// buildTurns assembles the outgoing sequence: project context system turns,
// bounded history, then the new user turn. The four project fields keep
// their fixed relative order; providers without a separate system field rely
// on sequence order to infer priority.
func (s *chatService) buildTurns(ctx context.Context, chat *model.Chat, history []model.Message, in SendMessageInput) ([]llm.Turn, error) {
	var turns []llm.Turn

	if chat.ProjectID != nil {
		project, err := s.projects.GetByID(ctx, *chat.ProjectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("loading project: %w", err)
		}
		if project != nil {
			for _, text := range []string{
				project.FileContext,
				project.SystemPrompt,
				project.SharedContext,
				project.Instructions,
			} {
				if text == "" {
					continue
				}
				turns = append(turns, llm.Turn{Role: llm.RoleSystem, Content: text})
			}
		}
	}

	for _, msg := range history {
		turns = append(turns, llm.Turn{
			Role:    msg.Role,
			Content: msg.Content,
			Images:  toImageRefs(msg.Images),
			Files:   toFileRefs(msg.Files),
		})
	}

	turns = append(turns, llm.Turn{
		Role:    llm.RoleUser,
		Content: in.Content,
		Images:  toImageRefs(in.Images),
		Files:   toFileRefs(in.Files),
	})

	return turns, nil
}

func (s *chatService) monthKey() string {
	return s.now().UTC().Format("2006-01")
}

func (s *chatService) CreateChat(ctx context.Context, userID int64, projectID *int64, title, modelID, providerID string) (*model.Chat, error) {
	chat := &model.Chat{
		ID:        id.New(),
		UserID:    userID,
		ProjectID: projectID,
		Title:     title,
		Model:     modelID,
		Provider:  providerID,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		slog.ErrorContext(ctx, "failed to create chat", "error", err)
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	slog.InfoContext(ctx, "chat created", "chat_id", chat.ID)
	return chat, nil
}

func (s *chatService) ListChats(ctx context.Context, userID int64) ([]model.Chat, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

func (s *chatService) DeleteChat(ctx context.Context, chatID, userID int64) error {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return fmt.Errorf("loading chat: %w", err)
	}
	if chat.UserID != userID {
		slog.WarnContext(ctx, "chat ownership check failed", "owner_id", chat.UserID)
		return ErrPermissionDenied
	}
	if err := s.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	slog.InfoContext(ctx, "chat deleted", "chat_id", chatID)
	return nil
}

func (s *chatService) GetMessages(ctx context.Context, chatID, userID int64, limit int) ([]model.Message, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("loading chat: %w", err)
	}
	if chat.UserID != userID {
		return nil, ErrPermissionDenied
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.messages.ListRecent(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return messages, nil
}

func toImageRefs(images []model.Image) []llm.ImageRef {
	refs := make([]llm.ImageRef, 0, len(images))
	for _, img := range images {
		refs = append(refs, llm.ImageRef{
			URL:           img.URL,
			MIMEType:      img.MIMEType,
			FileSizeBytes: img.FileSizeBytes,
		})
	}
	return refs
}

func toFileRefs(files []model.File) []llm.FileRef {
	refs := make([]llm.FileRef, 0, len(files))
	for _, f := range files {
		refs = append(refs, llm.FileRef{
			URL:           f.URL,
			FileName:      f.FileName,
			MIMEType:      f.MIMEType,
			FileSizeBytes: f.FileSizeBytes,
		})
	}
	return refs
}
