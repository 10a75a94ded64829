// Package genai wraps the generative language API used by the assistant
// features. All calls run under a bounded deadline and upstream failures are
// folded into a small error taxonomy so handlers can distinguish
// configuration problems from transient outages.
package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Failure classes for upstream calls.
var (
	// ErrUpstreamAuth covers rejected credentials and exhausted quota.
	// Retrying without operator intervention will not help.
	ErrUpstreamAuth = errors.New("genai: upstream rejected credentials or quota")
	// ErrUnavailable covers network failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("genai: upstream unavailable")
	// ErrMalformed covers responses the client could not interpret.
	ErrMalformed = errors.New("genai: malformed upstream response")
)

// Client calls the generative language API.
type Client interface {
	// Generate produces a completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateVision produces a completion for a prompt plus an inline image.
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Config holds client settings. BaseURL is overridable so tests can point the
// client at a local fake.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New builds a Client from the given config.
func New(cfg Config) Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	return &client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: timeout,
	}
}

func (c *client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

func (c *client) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	return c.complete(ctx, []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
				},
			},
		},
	})
}

func (c *client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.2,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformed)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", ErrMalformed)
	}
	return text, nil
}

// classify maps transport and API errors onto the package error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusPaymentRequired, http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: deadline exceeded", ErrUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
