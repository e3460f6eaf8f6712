package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openaiAdapter serves OpenAI itself and the OpenAI-compatible vendors
// (DeepSeek, Mistral) via a base URL override. For OpenAI with attached
// files it delegates to the file-session protocol.
type openaiAdapter struct {
	providerID string
	client     openai.Client
	multimodal bool
	session    *fileSession
}

func newOpenAIAdapter(providerID string, cred Credential, multimodal bool, opts DispatcherOptions) *openaiAdapter {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cred.APIKey),
	}
	if cred.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cred.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	a := &openaiAdapter{
		providerID: providerID,
		client:     client,
		multimodal: multimodal,
	}
	if providerID == ProviderOpenAI {
		a.session = newFileSession(client, opts.HTTPClient, opts.Session)
	}
	return a
}

func (a *openaiAdapter) Dispatch(ctx context.Context, payload *Payload) (*Result, error) {
	if len(payload.UploadFiles) > 0 && a.session != nil {
		return a.session.Dispatch(ctx, payload)
	}

	params := openai.ChatCompletionNewParams{
		Model:    payload.Model,
		Messages: a.convertMessages(payload),
	}
	if payload.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(payload.MaxTokens))
	}
	if payload.Temperature != nil {
		params.Temperature = openai.Float(*payload.Temperature)
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, a.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: a.providerID, Message: "no choices in response"}
	}

	slog.DebugContext(ctx, "chat completion finished",
		"provider", a.providerID,
		"model", payload.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &Result{
		Content: resp.Choices[0].Message.Content,
		Usage: usageFromCounts(
			int(resp.Usage.PromptTokens),
			int(resp.Usage.CompletionTokens),
			int(resp.Usage.TotalTokens),
		),
	}, nil
}

func (a *openaiAdapter) convertMessages(payload *Payload) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(payload.Messages)+len(payload.System))

	// These providers carry system content in the message array.
	for _, text := range payload.System {
		result = append(result, openai.SystemMessage(text))
	}

	for _, msg := range payload.Messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Text()))

		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Text()))

		case RoleUser:
			if a.multimodal && hasImageParts(msg) {
				parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
				for _, p := range msg.Parts {
					switch p.Type {
					case PartText:
						parts = append(parts, openai.TextContentPart(p.Text))
					case PartImageURL:
						parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    p.URL,
							Detail: p.Detail,
						}))
					}
				}
				result = append(result, openai.UserMessage(parts))
			} else {
				result = append(result, openai.UserMessage(msg.Text()))
			}
		}
	}

	return result
}

func (a *openaiAdapter) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   a.providerID,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Cause:      err,
		}
	}
	return &ProviderError{
		Provider: a.providerID,
		Message:  fmt.Sprintf("chat completion: %v", err),
		Cause:    err,
	}
}

func hasImageParts(msg Message) bool {
	for _, p := range msg.Parts {
		if p.Type == PartImageURL || p.Type == PartImageData {
			return true
		}
	}
	return false
}

// usageFromCounts normalizes provider token reporting. When a provider
// reports prompt and completion counts, the total is their sum; when it
// reports nothing, all three stay zero.
func usageFromCounts(prompt, completion, total int) Usage {
	if total == 0 {
		total = prompt + completion
	}
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
