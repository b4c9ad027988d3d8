// Package llm is the model-collaborator boundary: providers that submit a
// prompt and return text plus token usage, a registry of configured models,
// and per-model call statistics.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the raw result of one model call.
type Response struct {
	Text  string
	Usage Usage
}

// Provider submits a prompt to one model endpoint.
type Provider interface {
	Invoke(ctx context.Context, prompt string) (*Response, error)
	Model() string
}

// CallFunc is the shape of a single model call. Registry.Call bound to a
// model id satisfies it, as does a bare Provider.Invoke in tests.
type CallFunc func(ctx context.Context, prompt string) (*Response, error)

// TransientError indicates a failure worth retrying (rate limit, 5xx,
// network). Anything else surfaced by a provider is fatal for that call.
type TransientError struct {
	StatusCode int
	Message    string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient llm error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsTransient checks if an error is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
