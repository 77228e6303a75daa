// Package llm is the extraction collaborator boundary: it turns a composed
// prompt into a {form, reply} result via the OpenAI chat API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMalformed marks a model response that came back over the wire fine but
// does not satisfy the {form, reply} contract.
var ErrMalformed = errors.New("llm: malformed extraction result")

// Result is the extraction collaborator's output. Form is left loosely typed
// on purpose: its shape is untrusted and the merge skips anything that does
// not match the schema.
type Result struct {
	Form  map[string]any
	Reply string
}

// Extractor is what the turn engine needs from the model boundary.
type Extractor interface {
	Extract(ctx context.Context, prompt string) (*Result, error)
}

// Client calls the OpenAI chat completion API for both form extraction and
// free-form completions (the test-lookup re-ranker reuses it).
type Client struct {
	api    *openai.Client
	model  string
	system string
	logger *slog.Logger
}

// NewClient builds an OpenAI-backed client. system is the JSON-contract
// system message sent with every extraction call.
func NewClient(apiKey, model, system string, logger *slog.Logger) *Client {
	return &Client{
		api:    openai.NewClient(apiKey),
		model:  model,
		system: system,
		logger: logger,
	}
}

// NewClientWithBaseURL points the client at an alternative endpoint, used by
// tests to swap in an httptest server.
func NewClientWithBaseURL(apiKey, model, system, baseURL string, logger *slog.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		model:  model,
		system: system,
		logger: logger,
	}
}

// Extract sends the prompt and parses the JSON contract out of the reply.
func (c *Client) Extract(ctx context.Context, prompt string) (*Result, error) {
	raw, err := c.complete(ctx, c.model, c.system, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		c.logger.Error("failed to parse extraction response", "error", err, "raw", raw)
		return nil, err
	}
	return result, nil
}

// Complete runs a plain system+user completion and returns the text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, c.model, system, user)
}

func (c *Client) complete(ctx context.Context, model, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ParseResult decodes the model's raw text into a Result. Models sometimes
// wrap the JSON in markdown fences despite instructions, so those are
// stripped first. A result without a reply is malformed: the conversation
// would have nothing to say.
func ParseResult(raw string) (*Result, error) {
	cleaned := stripFences(raw)

	var decoded struct {
		Form  map[string]any `json:"form"`
		Reply string         `json:"reply"`
	}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(decoded.Reply) == "" {
		return nil, fmt.Errorf("%w: missing reply", ErrMalformed)
	}
	if decoded.Form == nil {
		decoded.Form = map[string]any{}
	}
	return &Result{Form: decoded.Form, Reply: decoded.Reply}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
