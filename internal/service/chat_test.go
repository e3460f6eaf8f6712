package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/server/common/id"
	"parley.app/server/common/llm"
	"parley.app/server/internal/model"
	"parley.app/server/internal/service"
	"parley.app/server/internal/store"
)

var _ = Describe("ChatService", func() {
	var (
		svc          service.ChatService
		users        *mockUserStore
		chats        *mockChatStore
		messages     *mockMessageStore
		projects     *mockProjectStore
		usage        *mockUsageStore
		normalizer   *mockNormalizer
		dispatcher   *mockDispatcher
		ctx          context.Context
		ownerID      int64
		chatID       int64
		appendedMsgs []*model.Message
		increments   int
	)

	newService := func() service.ChatService {
		return service.NewChatService(users, chats, messages, projects, usage, normalizer, dispatcher, 10)
	}

	BeforeEach(func() {
		ctx = context.Background()
		ownerID = int64(101)
		chatID = int64(202)
		appendedMsgs = nil
		increments = 0

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		users = &mockUserStore{
			getByIDFn: func(_ context.Context, userID int64) (*model.User, error) {
				return &model.User{ID: userID, Plan: model.PlanFree}, nil
			},
		}
		chats = &mockChatStore{
			getByIDFn: func(_ context.Context, id int64) (*model.Chat, error) {
				return &model.Chat{ID: id, UserID: ownerID}, nil
			},
		}
		messages = &mockMessageStore{
			appendFn: func(_ context.Context, msg *model.Message) error {
				appendedMsgs = append(appendedMsgs, msg)
				return nil
			},
		}
		projects = &mockProjectStore{}
		usage = &mockUsageStore{
			incrementFn: func(_ context.Context, _ int64, _ string) error {
				increments++
				return nil
			},
		}
		normalizer = &mockNormalizer{}
		dispatcher = &mockDispatcher{
			dispatchFn: func(_ context.Context, p *llm.Payload) (*llm.Result, error) {
				return &llm.Result{
					Content: "assistant reply",
					Usage:   llm.Usage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42},
				}, nil
			},
		}
	})

	input := func() service.SendMessageInput {
		return service.SendMessageInput{
			ChatID:   chatID,
			UserID:   ownerID,
			Content:  "hello",
			Model:    "gpt-4o",
			Provider: llm.ProviderOpenAI,
		}
	}

	Describe("SendMessage", func() {
		Context("when the caller does not own the chat", func() {
			It("returns permission denied without calling any provider", func() {
				chats.getByIDFn = func(_ context.Context, id int64) (*model.Chat, error) {
					return &model.Chat{ID: id, UserID: ownerID + 1}, nil
				}

				svc = newService()
				result, err := svc.SendMessage(ctx, input())

				Expect(err).To(MatchError(service.ErrPermissionDenied))
				Expect(result).To(BeNil())
				Expect(dispatcher.calls).To(BeZero())
				Expect(increments).To(BeZero())
			})
		})

		Context("when the chat does not exist", func() {
			It("propagates not found", func() {
				chats.getByIDFn = func(_ context.Context, _ int64) (*model.Chat, error) {
					return nil, store.ErrNotFound
				}

				svc = newService()
				_, err := svc.SendMessage(ctx, input())

				Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
				Expect(dispatcher.calls).To(BeZero())
			})
		})

		Context("when a free tier user has exhausted the monthly quota", func() {
			It("rejects without any provider call or counter change", func() {
				usage.getMonthlyFn = func(_ context.Context, _ int64, _ string) (int, error) {
					return 10, nil
				}

				svc = newService()
				result, err := svc.SendMessage(ctx, input())

				Expect(err).To(MatchError(service.ErrQuotaExceeded))
				Expect(result).To(BeNil())
				Expect(dispatcher.calls).To(BeZero())
				Expect(increments).To(BeZero())
				Expect(appendedMsgs).To(BeEmpty())
			})
		})

		Context("when a free tier user sends the last in-quota message", func() {
			It("dispatches once and increments the counter exactly once", func() {
				usage.getMonthlyFn = func(_ context.Context, _ int64, _ string) (int, error) {
					return 9, nil
				}

				svc = newService()
				result, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(result).NotTo(BeNil())
				Expect(dispatcher.calls).To(Equal(1))
				Expect(increments).To(Equal(1))
			})
		})

		Context("when the user is on the pro plan", func() {
			It("never consults the usage counter", func() {
				users.getByIDFn = func(_ context.Context, userID int64) (*model.User, error) {
					return &model.User{ID: userID, Plan: model.PlanPro}, nil
				}
				usage.getMonthlyFn = func(_ context.Context, _ int64, _ string) (int, error) {
					Fail("usage counter should not be read for pro users")
					return 0, nil
				}

				svc = newService()
				_, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(dispatcher.calls).To(Equal(1))
			})
		})

		Context("when dispatch succeeds", func() {
			It("persists both turns and records token usage on the assistant message", func() {
				svc = newService()
				result, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(appendedMsgs).To(HaveLen(2))

				userMsg := appendedMsgs[0]
				Expect(userMsg.Role).To(Equal(model.RoleUser))
				Expect(userMsg.Content).To(Equal("hello"))
				Expect(userMsg.Status).To(Equal(model.StatusComplete))

				assistantMsg := appendedMsgs[1]
				Expect(assistantMsg.Role).To(Equal(model.RoleAssistant))
				Expect(assistantMsg.Content).To(Equal("assistant reply"))
				Expect(assistantMsg.TokenCount).To(Equal(42))
				Expect(assistantMsg.ID).NotTo(BeZero())

				Expect(result.Message).To(Equal(assistantMsg))
				Expect(result.Usage.TotalTokens).To(Equal(42))
			})

			It("bumps the chat message count", func() {
				var recorded int64
				chats.recordMessageFn = func(_ context.Context, id int64) error {
					recorded = id
					return nil
				}

				svc = newService()
				_, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(recorded).To(Equal(chatID))
			})
		})

		Context("when dispatch fails", func() {
			It("persists nothing and never charges the user", func() {
				dispatcher.dispatchFn = func(_ context.Context, _ *llm.Payload) (*llm.Result, error) {
					return nil, &llm.ProviderError{Provider: llm.ProviderOpenAI, StatusCode: 500, Message: "upstream down"}
				}

				svc = newService()
				result, err := svc.SendMessage(ctx, input())

				Expect(err).To(HaveOccurred())
				var provErr *llm.ProviderError
				Expect(errors.As(err, &provErr)).To(BeTrue())
				Expect(result).To(BeNil())
				Expect(increments).To(BeZero())
				Expect(appendedMsgs).To(BeEmpty())
			})
		})

		Context("when the chat belongs to a project", func() {
			It("injects non-empty context fields as leading system turns in fixed order", func() {
				projectID := int64(7)
				chats.getByIDFn = func(_ context.Context, id int64) (*model.Chat, error) {
					return &model.Chat{ID: id, UserID: ownerID, ProjectID: &projectID}, nil
				}
				projects.getByIDFn = func(_ context.Context, id int64) (*model.Project, error) {
					return &model.Project{
						ID:           id,
						FileContext:  "file context",
						Instructions: "be terse",
					}, nil
				}

				var captured []llm.Turn
				normalizer.normalizeFn = func(_ context.Context, turns []llm.Turn, providerID, modelID string) (*llm.Payload, error) {
					captured = turns
					return &llm.Payload{Provider: providerID, Model: modelID}, nil
				}

				svc = newService()
				_, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(len(captured)).To(Equal(3))
				Expect(captured[0].Role).To(Equal(llm.RoleSystem))
				Expect(captured[0].Content).To(Equal("file context"))
				Expect(captured[1].Role).To(Equal(llm.RoleSystem))
				Expect(captured[1].Content).To(Equal("be terse"))
				Expect(captured[2].Role).To(Equal(llm.RoleUser))
			})

			It("skips project context when the project row is gone", func() {
				projectID := int64(7)
				chats.getByIDFn = func(_ context.Context, id int64) (*model.Chat, error) {
					return &model.Chat{ID: id, UserID: ownerID, ProjectID: &projectID}, nil
				}
				projects.getByIDFn = func(_ context.Context, _ int64) (*model.Project, error) {
					return nil, store.ErrNotFound
				}

				svc = newService()
				_, err := svc.SendMessage(ctx, input())

				Expect(err).NotTo(HaveOccurred())
				Expect(dispatcher.calls).To(Equal(1))
			})
		})

		Context("when the message is empty", func() {
			It("rejects before any store access", func() {
				in := input()
				in.Content = ""

				svc = newService()
				_, err := svc.SendMessage(ctx, in)

				Expect(err).To(MatchError(service.ErrEmptyMessage))
			})
		})

		It("includes recent history ahead of the new turn", func() {
			messages.listRecentFn = func(_ context.Context, _ int64, limit int) ([]model.Message, error) {
				Expect(limit).To(Equal(20))
				return []model.Message{
					{Role: model.RoleUser, Content: "earlier question"},
					{Role: model.RoleAssistant, Content: "earlier answer"},
				}, nil
			}

			var captured []llm.Turn
			normalizer.normalizeFn = func(_ context.Context, turns []llm.Turn, providerID, modelID string) (*llm.Payload, error) {
				captured = turns
				return &llm.Payload{Provider: providerID, Model: modelID}, nil
			}

			svc = newService()
			_, err := svc.SendMessage(ctx, input())

			Expect(err).NotTo(HaveOccurred())
			Expect(captured).To(HaveLen(3))
			Expect(captured[0].Content).To(Equal("earlier question"))
			Expect(captured[1].Content).To(Equal("earlier answer"))
			Expect(captured[2].Content).To(Equal("hello"))
		})
	})

	Describe("GetMessages", func() {
		It("denies access to another user's chat", func() {
			svc = newService()
			_, err := svc.GetMessages(ctx, chatID, ownerID+5, 10)

			Expect(err).To(MatchError(service.ErrPermissionDenied))
		})

		It("clamps out-of-range limits", func() {
			var gotLimit int
			messages.listRecentFn = func(_ context.Context, _ int64, limit int) ([]model.Message, error) {
				gotLimit = limit
				return nil, nil
			}

			svc = newService()
			_, err := svc.GetMessages(ctx, chatID, ownerID, 1000)

			Expect(err).NotTo(HaveOccurred())
			Expect(gotLimit).To(Equal(50))
		})
	})

	Describe("CreateChat", func() {
		It("assigns a snowflake id and persists through the store", func() {
			var created *model.Chat
			chats.createFn = func(_ context.Context, chat *model.Chat) error {
				created = chat
				return nil
			}

			svc = newService()
			chat, err := svc.CreateChat(ctx, ownerID, nil, "New chat", "gpt-4o", llm.ProviderOpenAI)

			Expect(err).NotTo(HaveOccurred())
			Expect(chat.ID).NotTo(BeZero())
			Expect(created).To(Equal(chat))
		})
	})

	Describe("DeleteChat", func() {
		It("deletes a chat the caller owns", func() {
			var deleted int64
			chats.deleteFn = func(_ context.Context, id int64) error {
				deleted = id
				return nil
			}

			svc = newService()
			err := svc.DeleteChat(ctx, chatID, ownerID)

			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(chatID))
		})

		It("refuses to delete another user's chat", func() {
			var deletes int
			chats.deleteFn = func(_ context.Context, _ int64) error {
				deletes++
				return nil
			}

			svc = newService()
			err := svc.DeleteChat(ctx, chatID, ownerID+5)

			Expect(err).To(MatchError(service.ErrPermissionDenied))
			Expect(deletes).To(BeZero())
		})

		It("propagates not found", func() {
			chats.getByIDFn = func(_ context.Context, _ int64) (*model.Chat, error) {
				return nil, store.ErrNotFound
			}

			svc = newService()
			err := svc.DeleteChat(ctx, chatID, ownerID)

			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})
})
