package fanout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/danhoughton/fanout/llm"
)

var ErrNoChoices = errors.New("no choices in LLM response")

// GatewayError is returned once the retry budget is exhausted (or a fatal
// error short-circuits it). It wraps the last underlying failure.
type GatewayError struct {
	Attempts int
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Gateway produces one assistant turn per call, retrying transient failures
// with doubling backoff. Retries are local to a single call and share no
// state across agents.
type Gateway struct {
	client llm.LLM
	config *Config
}

// NewGateway wraps an LLM client with the retry policy from config
func NewGateway(client llm.LLM, config *Config) *Gateway {
	if config == nil {
		config = DefaultConfig()
	}
	return &Gateway{client: client, config: config}
}

// Complete sends the conversation plus tool schemas and returns the
// assistant's next message. A response with zero choices counts as a
// transient failure, not success.
func (g *Gateway) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Message, error) {
	req := llm.ChatCompletionRequest{
		Model:       g.config.Model,
		Messages:    messages,
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
		Tools:       tools,
	}

	var lastErr error
	for attempt := 1; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := g.backoff(attempt - 1)
			if g.config.Debug {
				log.Printf("[gateway] attempt %d after error: %v (backing off %v)", attempt, lastErr, backoff)
			}
			select {
			case <-ctx.Done():
				return llm.Message{}, &GatewayError{Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		requestCtx := ctx
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && g.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			requestCtx, cancel = context.WithTimeout(ctx, g.config.RequestTimeout)
			defer cancel()
		}

		resp, err := g.client.CreateChatCompletion(requestCtx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = ErrNoChoices
				continue
			}
			return resp.Choices[0].Message, nil
		}

		lastErr = err
		if isFatalError(err) {
			return llm.Message{}, &GatewayError{Attempts: attempt, Err: err}
		}
	}

	return llm.Message{}, &GatewayError{Attempts: g.config.MaxRetries, Err: lastErr}
}

// backoff doubles per retry, capped at BackoffCap
func (g *Gateway) backoff(retry int) time.Duration {
	backoff := g.config.RetryBackoff * time.Duration(1<<uint(retry-1))
	if g.config.BackoffCap > 0 && backoff > g.config.BackoffCap {
		backoff = g.config.BackoffCap
	}
	return backoff
}

// isFatalError checks if an error should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid auth") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "invalid model")
}
