package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veridex/internal/prompt"
)

// OpenAIProvider implements the Provider interface for OpenAI models.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Invoke renders the prompt, calls the Chat Completions API in JSON mode, and
// returns the validated JSON body. Transient failures and JSON parse failures
// are retried up to the configured limit.
func (p *OpenAIProvider) Invoke(ctx context.Context, promptKey string, vars map[string]any, opts CallOptions) (*Response, error) {
	system, user, err := prompt.Render(promptKey, vars)
	if err != nil {
		return nil, callErr(opts, promptKey, "render prompt", err)
	}

	model := p.config.ModelForTier(opts.Tier)
	if model == "" {
		model = openai.GPT4o
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	temperature := float32(0.2)
	if opts.Temperature != nil {
		temperature = float32(*opts.Temperature)
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
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
			MaxTokens:   maxTokens,
			Temperature: temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
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
