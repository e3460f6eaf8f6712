// Package catalog maintains the list of usable models per configured
// provider. Live provider lists are preferred; when a live call fails the
// registry substitutes a hardcoded fallback catalog for that provider, a
// deliberate staleness trade-off that keeps the product usable during
// provider outages.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"parley.app/server/common/llm"
)

// Capability constants.
const (
	CapabilityText       = "text"
	CapabilityChat       = "chat"
	CapabilityMultimodal = "multimodal"
	CapabilityWebSearch  = "web_search"
	CapabilityCode       = "code"
)

// ModelDescriptor describes one usable model. Descriptors are derived fresh
// on each listing and never persisted.
type ModelDescriptor struct {
	ModelID             string   `json:"model_id"`
	ProviderID          string   `json:"provider_id"`
	Capabilities        []string `json:"capabilities"`
	ContextWindowTokens int      `json:"context_window_tokens"`
	MaxOutputTokens     int      `json:"max_output_tokens"`
	Available           bool     `json:"available"`
}

// Cache is an optional listing cache. The redis implementation lives in
// cache.go; a nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type Registry struct {
	cfg        llm.Config
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
}

type Options struct {
	HTTPClient *http.Client
	Cache      Cache
	CacheTTL   time.Duration
}

func NewRegistry(cfg llm.Config, opts Options) *Registry {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Registry{
		cfg:        cfg,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// ListAvailableModels returns the usable models of every provider with a
// configured credential, in stable provider registration order. A provider
// whose live list fails contributes its fallback catalog instead.
func (r *Registry) ListAvailableModels(ctx context.Context) []ModelDescriptor {
	var out []ModelDescriptor

	for _, providerID := range llm.Providers() {
		if !r.cfg.Configured(providerID) {
			continue
		}
		out = append(out, r.listProvider(ctx, providerID)...)
	}

	return out
}

func (r *Registry) listProvider(ctx context.Context, providerID string) []ModelDescriptor {
	cacheKey := "model_catalog:" + providerID

	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, cacheKey); ok {
			var cached []ModelDescriptor
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached
			}
		}
	}

	ids, err := r.fetchLiveModelIDs(ctx, providerID)
	if err != nil {
		slog.WarnContext(ctx, "live model list failed, using fallback catalog",
			"provider", providerID,
			"error", err)
		return fallbackCatalog(providerID)
	}

	models := make([]ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		if excludedModel(id) {
			continue
		}
		models = append(models, describeModel(providerID, id))
	}

	if len(models) == 0 {
		// A live list with nothing usable is as bad as a failed one.
		return fallbackCatalog(providerID)
	}

	if r.cache != nil {
		if raw, err := json.Marshal(models); err == nil {
			r.cache.Set(ctx, cacheKey, raw, r.cacheTTL)
		}
	}

	return models
}

// fetchLiveModelIDs calls the provider's model-list endpoint. The auth
// convention comes from the provider descriptor; the response shape is either
// OpenAI-style {"data":[{"id":...}]} or Gemini-style {"models":[{"name":...}]}.
func (r *Registry) fetchLiveModelIDs(ctx context.Context, providerID string) ([]string, error) {
	desc, ok := llm.DescriptorFor(providerID)
	if !ok {
		return nil, fmt.Errorf("no descriptor for provider %q", providerID)
	}
	cred, _ := r.cfg.CredentialFor(providerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.ModelsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building model list request: %w", err)
	}

	value := cred.APIKey
	if desc.AuthScheme != "" {
		value = desc.AuthScheme + " " + value
	}
	req.Header.Set(desc.AuthHeader, value)
	if providerID == llm.ProviderAnthropic {
		req.Header.Set("anthropic-version", "2023-06-01")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching model list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching model list: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading model list: %w", err)
	}

	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}

	var ids []string
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	for _, m := range parsed.Models {
		// Gemini names models "models/gemini-...".
		name := m.Name
		if len(name) > 7 && name[:7] == "models/" {
			name = name[7:]
		}
		ids = append(ids, name)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("model list response had no entries")
	}
	return ids, nil
}
