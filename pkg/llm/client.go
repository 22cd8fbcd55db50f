// Package llm owns every interaction with the chat model: the retrying
// completion client, the input/output guard checks, and the critique call.
// All decisions come back as structured values, never raw text.
package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable marks a transport-level model failure that survived the
// retry budget. Callers use it to distinguish "the model is down" from
// parse or validation problems.
var ErrUnavailable = errors.New("llm unavailable")

// CompletionRequest is a single-shot system+user completion, optionally in
// JSON mode. Used by the guard and critique services.
type CompletionRequest struct {
	System       string
	User         string
	JSONResponse bool
}

// Client abstracts the chat model so stages can be tested with deterministic
// stubs.
type Client interface {
	// Complete sends a system+user pair and returns the response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// ChatWithTools sends a full conversation with the tool set bound and
	// returns the assistant message, which may contain tool calls.
	ChatWithTools(ctx context.Context, messages []go_openai.ChatCompletionMessage, toolDefs []go_openai.Tool) (go_openai.ChatCompletionMessage, error)
}

// OpenAIClient is the production Client backed by the OpenAI chat API. Every
// call goes through a bounded retry with exponential backoff and jitter.
type OpenAIClient struct {
	api         *go_openai.Client
	model       string
	temperature float32
	maxAttempts int
	backoffBase time.Duration
	timeout     time.Duration
}

var _ Client = (*OpenAIClient)(nil)

// ClientOption customises an OpenAIClient.
type ClientOption func(*OpenAIClient)

// WithTemperature sets the sampling temperature. 0 is the default and the
// right choice for structured extraction.
func WithTemperature(t float32) ClientOption {
	return func(c *OpenAIClient) { c.temperature = t }
}

// WithMaxAttempts bounds the retry loop, initial attempt included.
func WithMaxAttempts(n int) ClientOption {
	return func(c *OpenAIClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithTimeout bounds each individual API call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *OpenAIClient) { c.timeout = d }
}

// WithBackoffBase sets the first retry delay; subsequent delays double.
func WithBackoffBase(d time.Duration) ClientOption {
	return func(c *OpenAIClient) { c.backoffBase = d }
}

// NewOpenAIClient builds the production client. baseURL may be empty to use
// the public API endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, opts ...ClientOption) *OpenAIClient {
	cfg := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &OpenAIClient{
		api:         go_openai.NewClientWithConfig(cfg),
		model:       model,
		maxAttempts: 4,
		backoffBase: 500 * time.Millisecond,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	chatReq := go_openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: req.System},
			{Role: go_openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.JSONResponse {
		chatReq.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.createWithRetry(ctx, chatReq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatWithTools implements Client.
func (c *OpenAIClient) ChatWithTools(ctx context.Context, messages []go_openai.ChatCompletionMessage, toolDefs []go_openai.Tool) (go_openai.ChatCompletionMessage, error) {
	chatReq := go_openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    messages,
		Tools:       toolDefs,
	}

	resp, err := c.createWithRetry(ctx, chatReq)
	if err != nil {
		return go_openai.ChatCompletionMessage{}, err
	}
	if len(resp.Choices) == 0 {
		return go_openai.ChatCompletionMessage{}, errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message, nil
}

// createWithRetry runs one chat completion with exponential backoff and
// jitter. Context cancellation aborts immediately; everything else is
// treated as transient until the attempt budget runs out.
func (c *OpenAIClient) createWithRetry(ctx context.Context, req go_openai.ChatCompletionRequest) (go_openai.ChatCompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			backoff += time.Duration(rand.Int63n(int64(c.backoffBase)))
			log.Debug().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("llm: retrying chat completion")
			select {
			case <-ctx.Done():
				return go_openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return go_openai.ChatCompletionResponse{}, ctx.Err()
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("llm: chat completion failed")
	}

	return go_openai.ChatCompletionResponse{}, errors.Wrapf(ErrUnavailable,
		"chat completion failed after %d attempts: %v", c.maxAttempts, lastErr)
}
