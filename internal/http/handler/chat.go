package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parley.app/server/common/llm"
	"parley.app/server/internal/http/dto"
	"parley.app/server/internal/http/middleware"
	"parley.app/server/internal/service"
	"parley.app/server/internal/store"
)

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req dto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chatService.CreateChat(ctx, userID, req.ProjectID, req.Title, req.Model, req.Provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToChatResponse(chat))
}

func (h *ChatHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chats, err := h.chatService.ListChats(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}

	out := make([]*dto.ChatResponse, 0, len(chats))
	for i := range chats {
		out = append(out, dto.ToChatResponse(&chats[i]))
	}
	c.JSON(http.StatusOK, gin.H{"chats": out})
}

func (h *ChatHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	if err := h.chatService.DeleteChat(ctx, chatID, userID); err != nil {
		respondChatError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.chatService.GetMessages(ctx, chatID, userID, limit)
	if err != nil {
		respondChatError(c, err)
		return
	}

	out := make([]*dto.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, dto.ToMessageResponse(&messages[i]))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.chatService.SendMessage(ctx, service.SendMessageInput{
		ChatID:   chatID,
		UserID:   userID,
		Content:  req.Content,
		Images:   dto.ToImages(req.Images),
		Files:    dto.ToFiles(req.Files),
		Model:    req.Model,
		Provider: req.Provider,
	})
	if err != nil {
		respondChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SendMessageResponse{
		Message: dto.ToMessageResponse(result.Message),
		Usage: dto.UsageResponse{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	})
}

// respondChatError maps service errors onto HTTP statuses. Provider failures
// surface as a 502 with the provider named so clients can distinguish
// upstream trouble from their own mistakes.
func respondChatError(c *gin.Context, err error) {
	var provErr *llm.ProviderError
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "you do not have access to this chat"})
	case errors.Is(err, service.ErrQuotaExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "monthly message quota exceeded, upgrade to continue"})
	case errors.Is(err, service.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message has no content or attachments"})
	case errors.Is(err, llm.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
	case errors.As(err, &provErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "provider request failed",
			"provider": provErr.Provider,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
	}
}
