// Package openai talks to OpenAI-compatible chat completion endpoints
// (OpenAI, OpenRouter, Anthropic's compatibility layer).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/spigell/autocv/internal/ai"
	"github.com/spigell/autocv/internal/settings"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Client is an ai.Backend bound to one API key and base URL.
type Client struct {
	api     chatCompleter
	baseURL string
}

// New implements ai.Factory.
func New(_ context.Context, s settings.Settings) (ai.Backend, error) {
	apiKey := strings.TrimSpace(s.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	baseURL := strings.TrimRight(s.EffectiveBaseURL(), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is not known for provider %q", s.Provider)
	}

	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	return &Client{api: goopenai.NewClientWithConfig(cfg), baseURL: baseURL}, nil
}

// Complete sends one system and one user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("openai client is not initialized")
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       req.Settings.Model,
		Temperature: float32(req.Settings.Temperature),
		MaxTokens:   req.Settings.MaxOutputTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion at %s: %w", c.baseURL, err)
	}

	if len(resp.Choices) == 0 {
		return "", ai.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ai.ErrEmptyResponse
	}

	return content, nil
}
