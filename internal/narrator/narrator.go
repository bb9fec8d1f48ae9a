// Package narrator abstracts the language model that writes the story.
package narrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/storyloom/storyloom/internal/errors"
)

// Request is one narration call.
type Request struct {
	Prompt    string
	MaxTokens int
}

// Response is the narrator's raw reply, stats block included.
type Response struct {
	Text string
}

// Narrator produces story text for a prompt. Implementations must be
// safe for concurrent use.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Narrator interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Narrate implements Narrator.
func (f Func) Narrate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// RetryPolicy retries transient narrator failures. Attempts counts total
// tries, not retries; Delay separates consecutive tries.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy is used when a caller does not configure one.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond}

// Do runs fn until it succeeds, attempts run out, or the context ends.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return apperrors.WithMetadata(
		apperrors.CodeNarratorUnavailable,
		fmt.Sprintf("narrator failed after %d attempts: %v", attempts, lastErr),
		map[string]string{"attempts": strconv.Itoa(attempts)},
	)
}
