package catalog

import "parley.app/server/common/llm"

// fallbackModels is the per-provider static catalog used when a live list
// call fails. Entries track each vendor's public lineup at time of writing;
// staleness here is an accepted trade-off, not a bug.
var fallbackModels = map[string][]string{
	llm.ProviderOpenAI: {
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4.1",
		"gpt-4.1-mini",
		"o3-mini",
	},
	llm.ProviderAnthropic: {
		"claude-sonnet-4-5",
		"claude-opus-4-1",
		"claude-3-5-haiku-latest",
	},
	llm.ProviderGoogle: {
		"gemini-2.0-flash",
		"gemini-1.5-pro",
		"gemini-1.5-flash",
	},
	llm.ProviderDeepSeek: {
		"deepseek-chat",
		"deepseek-reasoner",
	},
	llm.ProviderMistral: {
		"mistral-large-latest",
		"mistral-small-latest",
		"codestral-latest",
	},
}

func fallbackCatalog(providerID string) []ModelDescriptor {
	ids := fallbackModels[providerID]
	models := make([]ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		models = append(models, describeModel(providerID, id))
	}
	return models
}
