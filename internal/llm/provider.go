package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tier is the cost/capability class of a structured call. The debate stage
// runs its reasoning steps on the standard tier and its validation checks on
// the cheap tier.
type Tier string

const (
	TierCheap    Tier = "cheap"
	TierStandard Tier = "standard"
)

// CallOptions parameterizes one structured call.
type CallOptions struct {
	Stage       string   // pipeline stage issuing the call, for error attribution
	Tier        Tier     // model tier; empty means standard
	Temperature *float64 // nil means provider default
	MaxTokens   int      // 0 means provider default
}

// Response is the parsed result of a structured call.
type Response struct {
	Data       json.RawMessage // validated JSON body
	Model      string
	TokensUsed int
}

// CallError is the distinguishable failure of a structured call. It is never
// substituted with defaults that look like success; callers decide whether to
// skip (extraction), fall back (clustering), or fail (debate).
type CallError struct {
	Stage     string
	PromptKey string
	Tier      Tier
	Reason    string
	Err       error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm call %s/%s (%s tier): %s: %v", e.Stage, e.PromptKey, e.Tier, e.Reason, e.Err)
	}
	return fmt.Sprintf("llm call %s/%s (%s tier): %s", e.Stage, e.PromptKey, e.Tier, e.Reason)
}

func (e *CallError) Unwrap() error { return e.Err }

// Provider is the structured-call interface the pipeline consumes: invoke a
// named prompt with variables and get back validated JSON.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Invoke renders the named prompt with the given variables, calls the
	// model at the requested tier, and returns the JSON body. Failures are
	// *CallError carrying stage, prompt key, tier, and reason.
	Invoke(ctx context.Context, promptKey string, vars map[string]any, opts CallOptions) (*Response, error)
}

// Config holds provider configuration.
type Config struct {
	Provider      string // "openai", "anthropic", "ollama"
	StandardModel string
	CheapModel    string
	APIKey        string
	BaseURL       string
	Timeout       int // seconds per call
	MaxTokens     int
	MaxRetries    int
}

// ModelForTier resolves the configured model name for a tier.
func (c Config) ModelForTier(tier Tier) string {
	if tier == TierCheap && c.CheapModel != "" {
		return c.CheapModel
	}
	return c.StandardModel
}

// callErr builds a *CallError for the given call.
func callErr(opts CallOptions, promptKey, reason string, err error) *CallError {
	tier := opts.Tier
	if tier == "" {
		tier = TierStandard
	}
	return &CallError{Stage: opts.Stage, PromptKey: promptKey, Tier: tier, Reason: reason, Err: err}
}

// extractJSON trims a model reply down to its JSON body. Models occasionally
// wrap JSON in markdown fences or prose despite instructions.
func extractJSON(text string) (json.RawMessage, error) {
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}
	end := -1
	for i := len(text) - 1; i >= start; i-- {
		if text[i] == '}' || text[i] == ']' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("unterminated JSON in response")
	}
	raw := json.RawMessage(text[start:end])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON in response")
	}
	return raw, nil
}
