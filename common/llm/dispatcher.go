package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Adapter sends one normalized payload to its provider and returns the
// uniform result. One adapter exists per provider; the set is closed at
// construction time.
type Adapter interface {
	Dispatch(ctx context.Context, payload *Payload) (*Result, error)
}

// SessionOptions bounds the file-session protocol's completion poll.
type SessionOptions struct {
	PollInterval time.Duration
	MaxPolls     int
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = 120
	}
	return o
}

// DispatcherOptions configures adapter construction.
type DispatcherOptions struct {
	Session SessionOptions

	// HTTPClient is used by adapters that speak raw HTTP (Google). A nil
	// client gets a 120 second timeout default.
	HTTPClient *http.Client
}

// Dispatcher owns one adapter per configured provider and routes payloads by
// provider id.
type Dispatcher struct {
	adapters map[string]Adapter
}

// NewDispatcher builds adapters for every provider with a configured
// credential. Unconfigured providers get no adapter; dispatching to them
// fails with ErrUnknownProvider.
func NewDispatcher(cfg Config, opts DispatcherOptions) *Dispatcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	opts.Session = opts.Session.withDefaults()

	adapters := make(map[string]Adapter)

	if cfg.OpenAI.Enabled() {
		adapters[ProviderOpenAI] = newOpenAIAdapter(ProviderOpenAI, cfg.OpenAI, true, opts)
	}
	if cfg.Anthropic.Enabled() {
		adapters[ProviderAnthropic] = newAnthropicAdapter(cfg.Anthropic)
	}
	if cfg.Google.Enabled() {
		adapters[ProviderGoogle] = newGoogleAdapter(cfg.Google, opts.HTTPClient)
	}
	if cfg.DeepSeek.Enabled() {
		adapters[ProviderDeepSeek] = newOpenAIAdapter(ProviderDeepSeek, cfg.DeepSeek, false, opts)
	}
	if cfg.Mistral.Enabled() {
		adapters[ProviderMistral] = newOpenAIAdapter(ProviderMistral, cfg.Mistral, false, opts)
	}

	return &Dispatcher{adapters: adapters}
}

// NewDispatcherWithAdapters builds a dispatcher over an explicit adapter set.
// Used by tests to substitute fakes.
func NewDispatcherWithAdapters(adapters map[string]Adapter) *Dispatcher {
	return &Dispatcher{adapters: adapters}
}

// Dispatch routes the payload to its provider's adapter. Any downstream
// failure surfaces as a *ProviderError; no automatic retry happens here.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *Payload) (*Result, error) {
	adapter, ok := d.adapters[payload.Provider]
	if !ok {
		return nil, fmt.Errorf("dispatch to %q: %w", payload.Provider, ErrUnknownProvider)
	}
	return adapter.Dispatch(ctx, payload)
}
