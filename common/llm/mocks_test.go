package llm_test

import (
	"context"
	"fmt"

	"parley.app/server/common/llm"
)

type mockExtractor struct {
	extractFn func(ctx context.Context, url, fileName, mimeType string) string
}

func (m *mockExtractor) Extract(ctx context.Context, url, fileName, mimeType string) string {
	if m.extractFn != nil {
		return m.extractFn(ctx, url, fileName, mimeType)
	}
	return fmt.Sprintf("content of %s", fileName)
}

type mockImageFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockImageFetcher) FetchImage(ctx context.Context, url string) ([]byte, string, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return []byte("image-bytes"), "image/png", nil
}

type mockAdapter struct {
	dispatchFn func(ctx context.Context, payload *llm.Payload) (*llm.Result, error)
	calls      int
}

func (m *mockAdapter) Dispatch(ctx context.Context, payload *llm.Payload) (*llm.Result, error) {
	m.calls++
	if m.dispatchFn != nil {
		return m.dispatchFn(ctx, payload)
	}
	return &llm.Result{Content: "ok"}, nil
}

func allProvidersConfig() llm.Config {
	cred := llm.Credential{APIKey: "test-key"}
	return llm.Config{
		OpenAI:    cred,
		Anthropic: cred,
		Google:    cred,
		DeepSeek:  cred,
		Mistral:   cred,
	}
}
