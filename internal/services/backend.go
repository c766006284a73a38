package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"study-buddy/internal/config"
)

var (
	// ErrBackendUnavailable is returned when no generative backend credential is configured.
	ErrBackendUnavailable = errors.New("generative backend is not configured")
	// ErrEmptyResponse is returned when the backend answers without any text.
	ErrEmptyResponse = errors.New("backend returned an empty response")
)

// Backend turns a prompt into markdown text.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewBackend builds the backend selected by cfg. A missing credential yields a
// backend whose calls fail with ErrBackendUnavailable.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Backend {
	case "openai":
		if cfg.OpenAIKey == "" {
			return unavailableBackend{}, nil
		}
		return NewOpenAIBackend(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIModel), nil
	default:
		if cfg.GeminiKey == "" {
			return unavailableBackend{}, nil
		}
		return NewGeminiBackend(ctx, cfg.GeminiKey, cfg.GeminiModel)
	}
}

type unavailableBackend struct{}

func (unavailableBackend) Generate(context.Context, string) (string, error) {
	return "", ErrBackendUnavailable
}

// GeminiBackend calls the Gemini API through the genai SDK.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// OpenAIBackend calls any OpenAI-compatible chat completion endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, endpoint, model string) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// timeoutBackend bounds every call with a fixed deadline.
type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout wraps b so each call gets its own deadline. A non-positive
// timeout returns b unchanged.
func WithTimeout(b Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		return b
	}
	return timeoutBackend{next: b, timeout: timeout}
}

func (b timeoutBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Generate(ctx, prompt)
}
