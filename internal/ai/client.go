// Package ai wraps the Anthropic Messages API with retries, a circuit
// breaker, and a concurrency limit, and provides tolerant JSON parsing of
// model output.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/f1re/watchdog/internal/logging"
)

// ModelSonnet is the default model for root-cause analysis
const ModelSonnet = "claude-sonnet-4-5-20250929"

// ErrNoAPIKey is returned when no Anthropic API key is available
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY not set")

// MessageCreator is the subset of the Anthropic client the package uses
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config holds client configuration
type Config struct {
	APIKey string // if empty, reads ANTHROPIC_API_KEY
	Model  string // default: ModelSonnet
	Retry  RetryConfig
	// Messages overrides the API client; tests use it
	Messages MessageCreator
}

// Client makes Anthropic API calls shared by every service loop
type Client struct {
	messages       MessageCreator
	model          string
	retry          RetryConfig
	circuitBreaker *gobreaker.CircuitBreaker[*anthropic.Message]
	concurrencySem *semaphore.Weighted
	log            zerolog.Logger
}

// NewClient creates a Client
func NewClient(cfg Config) (*Client, error) {
	messages := cfg.Messages
	if messages == nil {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		client := anthropic.NewClient(option.WithAPIKey(apiKey))
		messages = &client.Messages
	}

	model := cfg.Model
	if model == "" {
		model = ModelSonnet
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = DefaultRetryConfig()
	}

	log := logging.Component("ai")
	c := &Client{
		messages: messages,
		model:    model,
		retry:    retry,
		log:      log,
	}
	if retry.CircuitBreakerEnabled {
		c.circuitBreaker = newBreaker(retry, log)
	}
	if retry.MaxConcurrentCalls > 0 {
		c.concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	return c, nil
}

// Model returns the model used when a call does not name one
func (c *Client) Model() string {
	return c.model
}

// CallAI sends prompt as a single user message and returns the text reply
func (c *Client) CallAI(ctx context.Context, prompt, operation, model string, maxTokens int) (string, error) {
	start := time.Now()
	if model == "" {
		model = c.model
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}

	response, err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) (*anthropic.Message, error) {
		return c.messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.log.Info().
		Str("operation", operation).
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("AI call complete")
	return text.String(), nil
}
