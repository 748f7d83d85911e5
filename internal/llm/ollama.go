package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veridex/internal/prompt"
)

// OllamaProvider implements the Provider interface for local Ollama models
// through Ollama's OpenAI-compatible endpoint.
type OllamaProvider struct {
	client *openai.Client
	config Config
}

// NewOllamaProvider creates a new Ollama provider. No API key is required.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"

	return &OllamaProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Invoke renders the prompt and calls the local model. Local models can be
// slow, so the per-call timeout defaults higher than the hosted providers.
func (p *OllamaProvider) Invoke(ctx context.Context, promptKey string, vars map[string]any, opts CallOptions) (*Response, error) {
	system, user, err := prompt.Render(promptKey, vars)
	if err != nil {
		return nil, callErr(opts, promptKey, "render prompt", err)
	}

	model := p.config.ModelForTier(opts.Tier)
	if model == "" {
		return nil, callErr(opts, promptKey, "no model configured", nil)
	}

	temperature := float32(0.2)
	if opts.Temperature != nil {
		temperature = float32(*opts.Temperature)
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	attempts := p.config.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, callErr(opts, promptKey, "context cancelled", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: temperature,
		})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in response")
			continue
		}

		raw, err := extractJSON(strings.TrimSpace(resp.Choices[0].Message.Content))
		if err != nil {
			lastErr = err
			continue
		}

		return &Response{
			Data:       raw,
			Model:      model,
			TokensUsed: resp.Usage.TotalTokens,
		}, nil
	}

	return nil, callErr(opts, promptKey, fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}
