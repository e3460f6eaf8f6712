package catalog

import "strings"

// capabilityRule maps a model-name substring to extra capabilities. A table
// keeps the heuristics testable and extensible without touching listing or
// dispatch logic.
type capabilityRule struct {
	pattern      string
	capabilities []string
}

var capabilityRules = []capabilityRule{
	{"vision", []string{CapabilityMultimodal}},
	{"gpt-4o", []string{CapabilityMultimodal}},
	{"gpt-4.1", []string{CapabilityMultimodal}},
	{"gpt-5", []string{CapabilityMultimodal}},
	{"claude-3", []string{CapabilityMultimodal}},
	{"claude-sonnet", []string{CapabilityMultimodal}},
	{"claude-opus", []string{CapabilityMultimodal}},
	{"claude-haiku", []string{CapabilityMultimodal}},
	{"gemini", []string{CapabilityMultimodal}},
	{"pixtral", []string{CapabilityMultimodal}},
	{"codestral", []string{CapabilityCode}},
	{"coder", []string{CapabilityCode}},
	{"codex", []string{CapabilityCode}},
	{"reasoner", []string{CapabilityCode}},
	{"search", []string{CapabilityWebSearch}},
	{":online", []string{CapabilityWebSearch}},
}

// excludedPatterns filters model ids that are not chat models: embeddings,
// audio, image generation, moderation, and long-deprecated snapshots.
var excludedPatterns = []string{
	"embedding",
	"embed",
	"whisper",
	"tts",
	"audio",
	"dall-e",
	"image",
	"moderation",
	"davinci",
	"babbage",
	"curie",
	"ada",
	"-0301",
	"-0314",
	"transcribe",
	"realtime",
	"ocr",
}

func excludedModel(modelID string) bool {
	id := strings.ToLower(modelID)
	for _, p := range excludedPatterns {
		if strings.Contains(id, p) {
			return true
		}
	}
	return false
}

// inferCapabilities derives a model's capability set from its name. Google
// models are multimodal by default regardless of name.
func inferCapabilities(providerID, modelID string) []string {
	caps := []string{CapabilityText, CapabilityChat}
	seen := map[string]bool{CapabilityText: true, CapabilityChat: true}

	add := func(c string) {
		if !seen[c] {
			caps = append(caps, c)
			seen[c] = true
		}
	}

	if providerID == "google" {
		add(CapabilityMultimodal)
	}

	id := strings.ToLower(modelID)
	for _, rule := range capabilityRules {
		if strings.Contains(id, rule.pattern) {
			for _, c := range rule.capabilities {
				add(c)
			}
		}
	}

	return caps
}

func describeModel(providerID, modelID string) ModelDescriptor {
	window, maxOut := contextLimits(modelID)
	return ModelDescriptor{
		ModelID:             modelID,
		ProviderID:          providerID,
		Capabilities:        inferCapabilities(providerID, modelID),
		ContextWindowTokens: window,
		MaxOutputTokens:     maxOut,
		Available:           true,
	}
}

// contextLimits returns conservative context-window and output bounds by
// model family. Providers do not report these on their list endpoints.
func contextLimits(modelID string) (window, maxOut int) {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "gemini-1.5-pro"):
		return 2_000_000, 8_192
	case strings.Contains(id, "gemini"):
		return 1_000_000, 8_192
	case strings.Contains(id, "claude"):
		return 200_000, 8_192
	case strings.Contains(id, "gpt-4o"), strings.Contains(id, "gpt-4.1"), strings.Contains(id, "gpt-5"):
		return 128_000, 16_384
	case strings.Contains(id, "deepseek"):
		return 64_000, 8_192
	case strings.Contains(id, "mistral-large"), strings.Contains(id, "codestral"):
		return 128_000, 8_192
	default:
		return 32_000, 4_096
	}
}
