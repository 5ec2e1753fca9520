// Package llm talks to OpenAI-compatible chat completion endpoints (Groq by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL    = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel      = "llama-3.1-8b-instant"
	defaultTimeout    = 60 * time.Second
	defaultAttempts   = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 10 * time.Second
	maxErrorBodyBytes = 4 << 10
)

// Config captures the settings needed to reach the completion API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Request is a single chat completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

// Client issues chat completions with retry on transient failures.
type Client struct {
	cfg        Config
	httpClient *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleep     func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetry overrides the attempt count and backoff bounds.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithSleeper replaces the retry wait, mainly for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewClient validates cfg and builds a client. A missing API key is an error
// so callers can fail fast at construction time.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		attempts:   defaultAttempts,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts <= 0 {
		c.attempts = 1
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// CompleteJSON asks for a JSON object response and returns the raw content.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return c.Complete(ctx, Request{System: system, User: user, JSON: true})
}

// Complete runs one chat completion and returns the message content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.User) == "" {
		return "", errors.New("llm complete: user prompt required")
	}

	payload := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.User})
	if req.JSON {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		content, err := c.send(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return "", err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("llm complete: failed after %d attempts: %w", c.attempts, lastErr)
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyContent is returned when the API answers without message content.
var ErrEmptyContent = errors.New("llm request: empty content")

func (c *Client) send(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	for _, choice := range decoded.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
	}
	return "", ErrEmptyContent
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.attempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, ErrEmptyContent) {
		return c.backoff(attempt), true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError {
			if statusErr.RetryAfter > 0 {
				return c.capDelay(statusErr.RetryAfter), true
			}
			return c.backoff(attempt), true
		}
		return 0, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles the base delay per attempt: base, 2*base, 4*base, ...
func (c *Client) backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.maxDelay > 0 && delay >= c.maxDelay {
			break
		}
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if c.maxDelay > 0 && delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
