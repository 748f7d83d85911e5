package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veridex/internal/model"
)

// NewProvider creates a structured-call provider based on configuration.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:      mc.Provider,
		StandardModel: mc.StandardModel,
		CheapModel:    mc.CheapModel,
		APIKey:        mc.APIKey,
		BaseURL:       mc.BaseURL,
		Timeout:       mc.Timeout,
		MaxTokens:     mc.MaxTokens,
		MaxRetries:    mc.MaxRetries,
	}
}
