package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicAdapter struct {
	client anthropic.Client
}

func newAnthropicAdapter(cred Credential) *anthropicAdapter {
	opts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
	}
	if cred.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cred.BaseURL))
	}

	return &anthropicAdapter{client: anthropic.NewClient(opts...)}
}

func (a *anthropicAdapter) Dispatch(ctx context.Context, payload *Payload) (*Result, error) {
	maxTokens := payload.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(payload.Model),
		MaxTokens: int64(maxTokens),
		Messages:  a.convertMessages(payload.Messages),
	}

	// Anthropic carries system content in a dedicated field, not as turns.
	for _, text := range payload.System {
		params.System = append(params.System, anthropic.TextBlockParam{
			Type: "text",
			Text: text,
		})
	}

	if payload.Temperature != nil {
		params.Temperature = anthropic.Float(*payload.Temperature)
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	slog.DebugContext(ctx, "chat completion finished",
		"provider", ProviderAnthropic,
		"model", payload.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Result{
		Content: content,
		Usage: usageFromCounts(
			int(resp.Usage.InputTokens),
			int(resp.Usage.OutputTokens),
			0,
		),
	}, nil
}

func (a *anthropicAdapter) convertMessages(msgs []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		var content []anthropic.ContentBlockParamUnion

		for _, p := range msg.Parts {
			switch p.Type {
			case PartText:
				content = append(content, anthropic.NewTextBlock(p.Text))
			case PartImageURL:
				// Anthropic takes a structured image block referencing the
				// URL directly; no server-side fetch needed.
				content = append(content, anthropic.ContentBlockParamUnion{
					OfImage: &anthropic.ImageBlockParam{
						Type: "image",
						Source: anthropic.ImageBlockParamSourceUnion{
							OfURL: &anthropic.URLImageSourceParam{
								Type: "url",
								URL:  p.URL,
							},
						},
					},
				})
			}
		}

		if len(content) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		result = append(result, anthropic.MessageParam{
			Role:    role,
			Content: content,
		})
	}

	return result
}

func (a *anthropicAdapter) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   ProviderAnthropic,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Cause:      err,
		}
	}
	return &ProviderError{
		Provider: ProviderAnthropic,
		Message:  fmt.Sprintf("chat completion: %v", err),
		Cause:    err,
	}
}
