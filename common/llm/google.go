package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// googleAdapter speaks the Gemini generateContent API over plain HTTP. There
// is no official Go SDK dependency here; the wire format is small enough to
// map directly.
type googleAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newGoogleAdapter(cred Credential, httpClient *http.Client) *googleAdapter {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &googleAdapter{
		apiKey:     cred.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *googleAdapter) Dispatch(ctx context.Context, payload *Payload) (*Result, error) {
	reqBody := geminiRequest{
		Contents: a.convertMessages(payload.Messages),
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: payload.MaxTokens,
			Temperature:     payload.Temperature,
		},
	}

	if len(payload.System) > 0 {
		var parts []geminiPart
		for _, text := range payload.System {
			parts = append(parts, geminiPart{Text: text})
		}
		reqBody.SystemInstruction = &geminiContent{Parts: parts}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "encoding request", Cause: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, payload.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", a.apiKey)

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "sending request", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "reading response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   ProviderGoogle,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 512),
		}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "decoding response", Cause: err}
	}

	if len(parsed.Candidates) == 0 {
		return nil, &ProviderError{Provider: ProviderGoogle, Message: "no candidates in response"}
	}

	var content string
	for _, p := range parsed.Candidates[0].Content.Parts {
		content += p.Text
	}

	slog.DebugContext(ctx, "chat completion finished",
		"provider", ProviderGoogle,
		"model", payload.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", parsed.UsageMetadata.PromptTokenCount,
		"completion_tokens", parsed.UsageMetadata.CandidatesTokenCount)

	return &Result{
		Content: content,
		Usage: usageFromCounts(
			parsed.UsageMetadata.PromptTokenCount,
			parsed.UsageMetadata.CandidatesTokenCount,
			parsed.UsageMetadata.TotalTokenCount,
		),
	}, nil
}

func (a *googleAdapter) convertMessages(msgs []Message) []geminiContent {
	result := make([]geminiContent, 0, len(msgs))

	for _, msg := range msgs {
		// Gemini knows only "user" and "model" roles.
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		for _, p := range msg.Parts {
			switch p.Type {
			case PartText:
				parts = append(parts, geminiPart{Text: p.Text})
			case PartImageData:
				parts = append(parts, geminiPart{
					InlineData: &geminiInlineData{
						MIMEType: p.MIMEType,
						Data:     p.Data,
					},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}

		result = append(result, geminiContent{Role: role, Parts: parts})
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
