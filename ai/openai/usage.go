package openai

import (
	"github.com/mishgancheg/wiki-rag/ai"
	"github.com/mishgancheg/wiki-rag/core"
	"github.com/tmc/langchaingo/llms"
)

// usageFromChoice extracts token counts from a completion choice's
// GenerationInfo and prices them with the configured rates. Providers that
// omit token accounting yield a zero Usage.
func usageFromChoice(choice *llms.ContentChoice, config *ai.Config) core.Usage {
	var u core.Usage
	if choice == nil || choice.GenerationInfo == nil {
		return u
	}
	u.PromptTokens = intFromInfo(choice.GenerationInfo, "PromptTokens")
	u.CompletionTokens = intFromInfo(choice.GenerationInfo, "CompletionTokens")
	u.TotalTokens = intFromInfo(choice.GenerationInfo, "TotalTokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	u.Cost = float64(u.PromptTokens)/1e6*config.PromptPricePerMTok +
		float64(u.CompletionTokens)/1e6*config.CompletionPricePerMTok
	return u
}

// intFromInfo reads a numeric GenerationInfo value. Different langchaingo
// backends report counts as int, int64, or float64.
func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
