package llm_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/server/common/llm"
)

var _ = Describe("Dispatcher", func() {
	var (
		ctx      context.Context
		adapter  *mockAdapter
		fallback *mockAdapter
	)

	BeforeEach(func() {
		ctx = context.Background()
		adapter = &mockAdapter{}
		fallback = &mockAdapter{}
	})

	It("routes by the payload's provider id", func() {
		d := llm.NewDispatcherWithAdapters(map[string]llm.Adapter{
			llm.ProviderOpenAI:    adapter,
			llm.ProviderAnthropic: fallback,
		})

		_, err := d.Dispatch(ctx, &llm.Payload{Provider: llm.ProviderOpenAI, Model: "gpt-4o"})

		Expect(err).NotTo(HaveOccurred())
		Expect(adapter.calls).To(Equal(1))
		Expect(fallback.calls).To(BeZero())
	})

	It("fails with ErrUnknownProvider for an unregistered provider", func() {
		d := llm.NewDispatcherWithAdapters(map[string]llm.Adapter{
			llm.ProviderOpenAI: adapter,
		})

		_, err := d.Dispatch(ctx, &llm.Payload{Provider: llm.ProviderGoogle, Model: "gemini-2.5-pro"})

		Expect(errors.Is(err, llm.ErrUnknownProvider)).To(BeTrue())
		Expect(adapter.calls).To(BeZero())
	})

	It("returns the adapter's result unchanged", func() {
		adapter.dispatchFn = func(_ context.Context, _ *llm.Payload) (*llm.Result, error) {
			return &llm.Result{
				Content: "reply",
				Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		}
		d := llm.NewDispatcherWithAdapters(map[string]llm.Adapter{llm.ProviderOpenAI: adapter})

		result, err := d.Dispatch(ctx, &llm.Payload{Provider: llm.ProviderOpenAI})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Content).To(Equal("reply"))
		Expect(result.Usage.TotalTokens).To(Equal(result.Usage.PromptTokens + result.Usage.CompletionTokens))
	})

	It("propagates provider errors intact", func() {
		provErr := &llm.ProviderError{Provider: llm.ProviderAnthropic, StatusCode: 429, Message: "rate limited"}
		adapter.dispatchFn = func(_ context.Context, _ *llm.Payload) (*llm.Result, error) {
			return nil, provErr
		}
		d := llm.NewDispatcherWithAdapters(map[string]llm.Adapter{llm.ProviderAnthropic: adapter})

		_, err := d.Dispatch(ctx, &llm.Payload{Provider: llm.ProviderAnthropic})

		var got *llm.ProviderError
		Expect(errors.As(err, &got)).To(BeTrue())
		Expect(got.StatusCode).To(Equal(429))
		Expect(got.Provider).To(Equal(llm.ProviderAnthropic))
	})
})

var _ = Describe("ProviderError", func() {
	It("includes the status code when present", func() {
		err := &llm.ProviderError{Provider: "openai", StatusCode: 502, Message: "bad gateway"}
		Expect(err.Error()).To(ContainSubstring("openai"))
		Expect(err.Error()).To(ContainSubstring("502"))
	})

	It("unwraps to its cause", func() {
		cause := errors.New("connection reset")
		err := &llm.ProviderError{Provider: "google", Cause: cause}
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})
