package llm

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message is a minimal chat message exchanged with a backend.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Caller is the narrow surface core components depend on. A Caller owns its
// backend address, credentials and model name; callers only supply messages.
// A failed call is an expected outcome and is reported as an error value.
type Caller interface {
	Respond(ctx context.Context, messages []Message) (string, error)
}

// Sentinel failures decided once at the gateway boundary. Downstream code
// never inspects transport-specific response shapes.
var (
	// ErrNoResponse means every attempt (including backoff retries and, for
	// the model under test, the reduced-context fallback) failed.
	ErrNoResponse = errors.New("llm: no response from backend")
	// ErrEmptyContent means the backend answered but the choice carried no
	// usable message content.
	ErrEmptyContent = errors.New("llm: response carried no content")
	// ErrMalformed means the response had no choices at all.
	ErrMalformed = errors.New("llm: malformed response structure")
)

// Retry policy defaults, matching the deployed harness: waits of 1, 3, 9,
// 27 and 81 seconds before giving up.
const (
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = 1 * time.Second
	DefaultBackoffFactor  = 3
)

const defaultTemperature = 0.3

// Config describes one logical backend (simulation, expert, or the model
// under test).
type Config struct {
	BaseURL string
	APIKey  string
	Model   string

	// TestModel marks the model under test. Only test-model calls get the
	// reduced-context fallback and deployment-keyed behavior overrides.
	TestModel bool
	// OutputPath is the run's result-file path; some local deployments are
	// recognized by substrings of it (see overrides in overrides.go).
	OutputPath string

	// Zero values fall back to the package defaults above.
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
}

// Client wraps a chat-completion backend with bounded retries, optional
// streaming, and final-answer extraction. One Client per logical backend.
type Client struct {
	api       *openai.Client
	model     string
	testModel bool

	maxTokens int
	stop      []string
	stream    bool

	maxRetries     int
	initialBackoff time.Duration
	backoffFactor  float64
}

// NewClient constructs a backend client. A missing base URL means the
// backend is not configured; callers that can run without it (the router)
// must handle a nil Caller.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	c := &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		model:          cfg.Model,
		testModel:      cfg.TestModel,
		maxTokens:      defaultMaxTokens,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		backoffFactor:  cfg.BackoffFactor,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	if c.backoffFactor <= 0 {
		c.backoffFactor = DefaultBackoffFactor
	}
	if cfg.TestModel {
		applyOverrides(c, cfg.OutputPath, cfg.Model)
	}
	return c
}

// Respond sends the message history and returns the extracted, trimmed
// response text. When the primary call yields no completion at all, the model
// under test is retried once more with a reduced context: all system messages
// plus the single most recent user message. Local test deployments are the
// least reliable backend, and a shorter prompt is more likely to succeed
// there. A completion that arrived without usable content does not trigger
// the fallback; the backend already answered.
func (c *Client) Respond(ctx context.Context, messages []Message) (string, error) {
	text, err := c.complete(ctx, messages)
	if err != nil && c.testModel && len(messages) > 1 && noCompletion(err) {
		short := reduceContext(messages)
		if len(short) > 0 && len(short) < len(messages) {
			log.Printf("llm: primary call to %s failed (%v); retrying with reduced context (%d -> %d messages)",
				c.model, err, len(messages), len(short))
			text, err = c.complete(ctx, short)
		}
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ExtractFinalResponse(text)), nil
}

// noCompletion reports whether the backend produced no completion at all, as
// opposed to a response that arrived but carried nothing usable.
func noCompletion(err error) bool {
	return !errors.Is(err, ErrEmptyContent) && !errors.Is(err, ErrMalformed)
}

// reduceContext keeps every system message plus the latest user message.
func reduceContext(messages []Message) []Message {
	short := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			short = append(short, m)
		}
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			short = append(short, messages[i])
			break
		}
	}
	return short
}

// complete performs one logical call with bounded retries. Rate limits,
// connection/timeout failures and 5xx responses back off and retry; any
// other error aborts immediately without consuming the remaining attempts.
func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toAPIMessages(messages),
		Temperature: defaultTemperature,
		MaxTokens:   c.maxTokens,
		Stop:        c.stop,
		Stream:      c.stream,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		var (
			text string
			err  error
		)
		if c.stream {
			text, err = c.completeStream(ctx, req)
		} else {
			text, err = c.completeBuffered(ctx, req)
		}
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			log.Printf("llm: non-retryable error from %s: %v", c.model, err)
			break
		}
		wait := backoffWait(c.initialBackoff, c.backoffFactor, attempt)
		log.Printf("llm: transient error from %s (attempt %d/%d): %v; retrying in %s",
			c.model, attempt+1, c.maxRetries, err, wait)
		time.Sleep(wait)
	}
	log.Printf("llm: call to %s failed, last error: %v", c.model, lastErr)
	return "", errors.Join(ErrNoResponse, lastErr)
}

func (c *Client) completeBuffered(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = false
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrMalformed
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}

// completeStream collects every chunk of an incremental response into one
// string. A mid-stream receive error keeps whatever was collected so far.
func (c *Client) completeStream(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Stream = true
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("llm: stream from %s interrupted: %v; keeping partial content", c.model, err)
			break
		}
		if len(chunk.Choices) > 0 {
			sb.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyContent
	}
	return sb.String(), nil
}

func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			role = RoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// retryable reports whether an error is worth another attempt: rate limits,
// server-side 5xx failures, and transport-level connection or timeout
// problems. Auth and other 4xx errors are not.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func backoffWait(initial time.Duration, factor float64, attempt int) time.Duration {
	wait := float64(initial)
	for i := 0; i < attempt; i++ {
		wait *= factor
	}
	return time.Duration(wait)
}
