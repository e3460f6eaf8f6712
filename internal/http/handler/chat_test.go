package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/server/common/llm"
	"parley.app/server/internal/http/handler"
	"parley.app/server/internal/http/middleware"
	"parley.app/server/internal/model"
	"parley.app/server/internal/service"
	"parley.app/server/internal/store"
)

const testSecret = "test-secret"

func signToken(subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	Expect(err).NotTo(HaveOccurred())
	return signed
}

var _ = Describe("ChatHandler", func() {
	var (
		router *gin.Engine
		svc    *mockChatService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockChatService{}
		h := handler.NewChatHandler(svc)

		authed := router.Group("/", middleware.RequireAuth(testSecret, ""))
		authed.POST("/chats", h.Create)
		authed.GET("/chats", h.List)
		authed.DELETE("/chats/:id", h.Delete)
		authed.POST("/chats/:id/messages", h.SendMessage)
		authed.GET("/chats/:id/messages", h.GetMessages)
	})

	doJSON := func(method, path string, body any, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	validSend := map[string]any{
		"content":  "hello",
		"model":    "gpt-4o",
		"provider": "openai",
	}

	Describe("authentication", func() {
		It("rejects requests without a token", func() {
			w := doJSON(http.MethodPost, "/chats/1/messages", validSend, "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a token signed with the wrong key", func() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Subject:   "42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			})
			signed, err := token.SignedString([]byte("other-secret"))
			Expect(err).NotTo(HaveOccurred())

			w := doJSON(http.MethodPost, "/chats/1/messages", validSend, signed)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("passes the token subject through as the user id", func() {
			var gotUserID int64
			svc.sendMessageFn = func(_ context.Context, in service.SendMessageInput) (*service.SendMessageResult, error) {
				gotUserID = in.UserID
				return &service.SendMessageResult{Message: &model.Message{}}, nil
			}

			w := doJSON(http.MethodPost, "/chats/1/messages", validSend, signToken("42"))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotUserID).To(Equal(int64(42)))
		})
	})

	Describe("SendMessage", func() {
		It("returns the assistant message and usage on success", func() {
			svc.sendMessageFn = func(_ context.Context, in service.SendMessageInput) (*service.SendMessageResult, error) {
				Expect(in.ChatID).To(Equal(int64(7)))
				Expect(in.Provider).To(Equal("openai"))
				return &service.SendMessageResult{
					Message: &model.Message{ID: 99, ChatID: 7, Role: model.RoleAssistant, Content: "hi there", TokenCount: 42},
					Usage:   llm.Usage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42},
				}, nil
			}

			w := doJSON(http.MethodPost, "/chats/7/messages", validSend, signToken("1"))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			msg := resp["message"].(map[string]any)
			Expect(msg["content"]).To(Equal("hi there"))
			usage := resp["usage"].(map[string]any)
			Expect(usage["total_tokens"]).To(BeNumerically("==", 42))
		})

		It("returns 400 on a malformed chat id", func() {
			w := doJSON(http.MethodPost, "/chats/abc/messages", validSend, signToken("1"))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 on an invalid body", func() {
			w := doJSON(http.MethodPost, "/chats/1/messages", map[string]any{"content": "x"}, signToken("1"))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		DescribeTable("maps service errors to statuses",
			func(err error, wantStatus int) {
				svc.sendMessageFn = func(_ context.Context, _ service.SendMessageInput) (*service.SendMessageResult, error) {
					return nil, err
				}

				w := doJSON(http.MethodPost, "/chats/1/messages", validSend, signToken("1"))
				Expect(w.Code).To(Equal(wantStatus))
			},
			Entry("permission denied", service.ErrPermissionDenied, http.StatusForbidden),
			Entry("quota exceeded", service.ErrQuotaExceeded, http.StatusTooManyRequests),
			Entry("empty message", service.ErrEmptyMessage, http.StatusBadRequest),
			Entry("unknown provider", llm.ErrUnknownProvider, http.StatusBadRequest),
			Entry("chat not found", store.ErrNotFound, http.StatusNotFound),
			Entry("provider failure", &llm.ProviderError{Provider: "openai", StatusCode: 500, Message: "down"}, http.StatusBadGateway),
		)

		It("names the failing provider in a 502 body", func() {
			svc.sendMessageFn = func(_ context.Context, _ service.SendMessageInput) (*service.SendMessageResult, error) {
				return nil, &llm.ProviderError{Provider: "anthropic", StatusCode: 529, Message: "overloaded"}
			}

			w := doJSON(http.MethodPost, "/chats/1/messages", validSend, signToken("1"))

			Expect(w.Code).To(Equal(http.StatusBadGateway))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["provider"]).To(Equal("anthropic"))
		})
	})

	Describe("Create", func() {
		It("returns 201 with the created chat", func() {
			svc.createChatFn = func(_ context.Context, userID int64, _ *int64, title, modelID, providerID string) (*model.Chat, error) {
				return &model.Chat{ID: 5, UserID: userID, Title: title, Model: modelID, Provider: providerID}, nil
			}

			w := doJSON(http.MethodPost, "/chats", map[string]any{
				"title":    "My chat",
				"model":    "gpt-4o",
				"provider": "openai",
			}, signToken("1"))

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["title"]).To(Equal("My chat"))
		})

		It("returns 400 when the title is missing", func() {
			w := doJSON(http.MethodPost, "/chats", map[string]any{
				"model":    "gpt-4o",
				"provider": "openai",
			}, signToken("1"))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Delete", func() {
		It("returns 204 and passes the ids through", func() {
			var gotChatID, gotUserID int64
			svc.deleteChatFn = func(_ context.Context, chatID, userID int64) error {
				gotChatID, gotUserID = chatID, userID
				return nil
			}

			w := doJSON(http.MethodDelete, "/chats/7", nil, signToken("42"))

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(gotChatID).To(Equal(int64(7)))
			Expect(gotUserID).To(Equal(int64(42)))
		})

		It("returns 403 for someone else's chat", func() {
			svc.deleteChatFn = func(_ context.Context, _, _ int64) error {
				return service.ErrPermissionDenied
			}

			w := doJSON(http.MethodDelete, "/chats/7", nil, signToken("42"))
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("returns 404 for a missing chat", func() {
			svc.deleteChatFn = func(_ context.Context, _, _ int64) error {
				return store.ErrNotFound
			}

			w := doJSON(http.MethodDelete, "/chats/7", nil, signToken("42"))
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GetMessages", func() {
		It("returns 403 for someone else's chat", func() {
			svc.getMessagesFn = func(_ context.Context, _, _ int64, _ int) ([]model.Message, error) {
				return nil, service.ErrPermissionDenied
			}

			w := doJSON(http.MethodGet, "/chats/1/messages", nil, signToken("1"))
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})

		It("returns the messages in order", func() {
			svc.getMessagesFn = func(_ context.Context, chatID, _ int64, _ int) ([]model.Message, error) {
				return []model.Message{
					{ID: 1, ChatID: chatID, Role: model.RoleUser, Content: "q"},
					{ID: 2, ChatID: chatID, Role: model.RoleAssistant, Content: "a"},
				}, nil
			}

			w := doJSON(http.MethodGet, "/chats/1/messages", nil, signToken("1"))

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Messages []map[string]any `json:"messages"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Messages).To(HaveLen(2))
			Expect(resp.Messages[0]["content"]).To(Equal("q"))
		})
	})
})
