// Package llm is the hardened outbound path to the language model: one
// logical call with per-attempt deadlines, classified retries and
// normalised usage.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/kehao95/rlmtrace/internal/config"
	"github.com/kehao95/rlmtrace/internal/llm/protocol"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// CodeResult is the outcome of a GenerateCode call. Success is false with
// an empty Code when the model answered without a repl segment; that is
// not an error.
type CodeResult struct {
	Code       string
	Success    bool
	Content    string
	Reasoning  string
	RawMessage json.RawMessage
	Usage      usage.Usage
}

// Client issues model calls through a Completer.
type Client struct {
	completer Completer
	sleep     Sleeper
	log       *slog.Logger
	onRetry   func(RetryEvent)
}

// Option configures a Client.
type Option func(*Client)

// WithSleeper replaces the backoff sleep (tests use it to record delays).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger routes retry diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetryHook calls fn before every backoff.
func WithRetryHook(fn func(RetryEvent)) Option {
	return func(c *Client) { c.onRetry = fn }
}

// New returns a Client over completer.
func New(completer Completer, opts ...Option) *Client {
	c := &Client{
		completer: completer,
		sleep:     sleepContext,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromConfig builds a Client talking HTTP to cfg's endpoint.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	completer, err := NewHTTPCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return New(completer, opts...), nil
}

// RetryOptionsFrom converts the configured knobs.
func RetryOptionsFrom(cfg *config.Config) RetryOptions {
	return RetryOptions{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay(),
		Timeout:      cfg.Timeout(),
	}
}

// GenerateCode sends messages to model with the system instructions for
// the agent role prepended, and extracts the repl code from the answer.
// Transient faults are retried with doubling delays; the returned error,
// if any, is an *InvocationError.
func (c *Client) GenerateCode(ctx context.Context, messages []protocol.Message, model string, leaf bool, opts RetryOptions) (CodeResult, error) {
	opts = opts.withDefaults()

	req := protocol.Request{
		Model:    model,
		Messages: make([]protocol.Message, 0, len(messages)+1),
	}
	req.Messages = append(req.Messages, protocol.Message{Role: protocol.RoleSystem, Content: systemPrompt(leaf)})
	req.Messages = append(req.Messages, messages...)

	state := newRetryState(opts)
	var lastErr error

	for state.next() {
		comp, err := runAttempt(ctx, opts.Timeout, func(actx context.Context) (protocol.Completion, error) {
			return c.completer.Complete(actx, req)
		})
		if err == nil {
			return buildResult(comp), nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetriable(err) || state.exhausted() {
			break
		}

		delay := state.backoff()
		c.log.Warn("API error, retrying",
			"attempt", state.attempt, "max", state.max, "delay", delay, "error", err)
		if c.onRetry != nil {
			c.onRetry(RetryEvent{Attempt: state.attempt, Max: state.max, Delay: delay, Err: err})
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	return CodeResult{}, &InvocationError{Attempts: state.attempt, Err: lastErr}
}

func buildResult(comp protocol.Completion) CodeResult {
	code := ExtractCode(comp.Content)
	return CodeResult{
		Code:       code,
		Success:    code != "",
		Content:    comp.Content,
		Reasoning:  comp.Reasoning,
		RawMessage: comp.Message,
		Usage:      comp.Usage,
	}
}
