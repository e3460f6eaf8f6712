package llm

import (
	"context"
	"errors"
	"fmt"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderDeepSeek  = "deepseek"
	ProviderMistral   = "mistral"
)

// Role constants for conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnknownProvider is returned when dispatch targets a provider that is not
// registered or has no credential configured. This is a configuration error;
// callers should not retry.
var ErrUnknownProvider = errors.New("unknown or unconfigured provider")

// Providers returns all known provider ids in stable registration order.
func Providers() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderDeepSeek, ProviderMistral}
}

// Descriptor is the static, read-only description of one provider's request
// conventions. Descriptors drive the normalizer's strategy choice; exactly one
// exists per provider.
type Descriptor struct {
	ID          string
	DisplayName string

	// ModelsEndpoint is the live model-list URL. Empty means the provider id
	// is interpolated into the chat endpoint only.
	ModelsEndpoint string

	// AuthHeader and AuthScheme describe how the API key is presented,
	// e.g. ("Authorization", "Bearer") or ("x-api-key", "").
	AuthHeader string
	AuthScheme string

	// SupportsNativeFileUpload means files can be pushed to the provider's
	// own file store and referenced in a completion.
	SupportsNativeFileUpload bool

	// SupportsImageURLReference means the provider dereferences https image
	// URLs embedded in message content.
	SupportsImageURLReference bool

	// InlinesImageData means images must be fetched server-side and sent as
	// base64 inline data.
	InlinesImageData bool

	// CanFetchURLs means the provider can download arbitrary attachment URLs
	// itself; when false, file content is extracted server-side instead.
	CanFetchURLs bool

	// SeparateSystemField means system turns are carried in a dedicated
	// request field rather than in the message array.
	SeparateSystemField bool
}

var descriptors = map[string]Descriptor{
	ProviderOpenAI: {
		ID:                        ProviderOpenAI,
		DisplayName:               "OpenAI",
		ModelsEndpoint:            "https://api.openai.com/v1/models",
		AuthHeader:                "Authorization",
		AuthScheme:                "Bearer",
		SupportsNativeFileUpload:  true,
		SupportsImageURLReference: true,
		CanFetchURLs:              true,
	},
	ProviderAnthropic: {
		ID:                        ProviderAnthropic,
		DisplayName:               "Anthropic",
		ModelsEndpoint:            "https://api.anthropic.com/v1/models",
		AuthHeader:                "x-api-key",
		SupportsImageURLReference: true,
		CanFetchURLs:              true,
		SeparateSystemField:       true,
	},
	ProviderGoogle: {
		ID:                  ProviderGoogle,
		DisplayName:         "Google AI",
		ModelsEndpoint:      "https://generativelanguage.googleapis.com/v1beta/models",
		AuthHeader:          "x-goog-api-key",
		InlinesImageData:    true,
		CanFetchURLs:        false,
		SeparateSystemField: true,
	},
	ProviderDeepSeek: {
		ID:             ProviderDeepSeek,
		DisplayName:    "DeepSeek",
		ModelsEndpoint: "https://api.deepseek.com/v1/models",
		AuthHeader:     "Authorization",
		AuthScheme:     "Bearer",
		CanFetchURLs:   true,
	},
	ProviderMistral: {
		ID:             ProviderMistral,
		DisplayName:    "Mistral",
		ModelsEndpoint: "https://api.mistral.ai/v1/models",
		AuthHeader:     "Authorization",
		AuthScheme:     "Bearer",
		CanFetchURLs:   true,
	},
}

// DescriptorFor returns the static descriptor for a provider id.
func DescriptorFor(providerID string) (Descriptor, bool) {
	d, ok := descriptors[providerID]
	return d, ok
}

// Credential holds one provider's API key and optional endpoint override.
type Credential struct {
	APIKey  string
	BaseURL string
}

func (c Credential) Enabled() bool {
	return c.APIKey != ""
}

// Config is the immutable provider configuration built once at startup and
// injected into the normalizer, dispatcher, and capability registry.
type Config struct {
	OpenAI    Credential
	Anthropic Credential
	Google    Credential
	DeepSeek  Credential
	Mistral   Credential
}

// CredentialFor returns the credential for a provider id.
func (c Config) CredentialFor(providerID string) (Credential, bool) {
	switch providerID {
	case ProviderOpenAI:
		return c.OpenAI, true
	case ProviderAnthropic:
		return c.Anthropic, true
	case ProviderGoogle:
		return c.Google, true
	case ProviderDeepSeek:
		return c.DeepSeek, true
	case ProviderMistral:
		return c.Mistral, true
	default:
		return Credential{}, false
	}
}

// Configured reports whether the provider exists and has an API key.
func (c Config) Configured(providerID string) bool {
	cred, ok := c.CredentialFor(providerID)
	return ok && cred.Enabled()
}

// ImageRef is an image attached to a conversation turn.
type ImageRef struct {
	URL           string
	MIMEType      string
	FileSizeBytes int64
}

// FileRef is a document attached to a conversation turn.
type FileRef struct {
	URL           string
	FileName      string
	MIMEType      string
	FileSizeBytes int64
}

// Turn is one provider-agnostic message in a conversation. Turns are
// immutable once dispatched; the orchestrator assembles a fresh sequence per
// request and nothing shares it across requests.
type Turn struct {
	Role    string
	Content string
	Images  []ImageRef
	Files   []FileRef
}

// Usage is the uniform token accounting returned by every adapter. Fields
// default to zero when a provider does not report counts.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Result is the uniform dispatch result across all providers.
type Result struct {
	Content string
	Usage   Usage
}

// ProviderError wraps any unrecoverable downstream provider failure.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the failure happened before an HTTP response
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider %s: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Extractor turns a remote file into plain text. Implementations never fail
// outward; on any error they return a bracketed placeholder so the
// conversation can proceed without the file's content.
type Extractor interface {
	Extract(ctx context.Context, url, fileName, mimeType string) string
}
