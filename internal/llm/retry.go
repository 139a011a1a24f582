package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryClient retries failed completions with exponential backoff.
type RetryClient struct {
	next        Client
	maxAttempts int
	backoff     time.Duration
}

// WithRetry wraps next so that each Complete call is attempted up to maxAttempts times.
// maxAttempts below 2 returns next unchanged.
func WithRetry(next Client, maxAttempts int, backoff time.Duration) Client {
	if maxAttempts < 2 {
		return next
	}
	return &RetryClient{next: next, maxAttempts: maxAttempts, backoff: backoff}
}

// Complete calls the wrapped client until it succeeds, attempts run out, the error
// is permanent, or ctx is done.
func (c *RetryClient) Complete(ctx context.Context, systemPrompt, userPrompt string, tier ModelTier) (string, error) {
	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, err := c.next.Complete(ctx, systemPrompt, userPrompt, tier)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !IsRetryable(err) {
			return "", fmt.Errorf("completion failed: %w", err)
		}
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("completion cancelled after %d attempts: %w", attempt, lastErr)
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", fmt.Errorf("completion failed after retries: %w", lastErr)
}

// IsRetryable reports whether a completion error is transient. Provider status
// codes decide when present: rate limits, timeouts and server errors are retried,
// auth failures and bad requests are not. Errors without a status (network
// failures, empty responses) are treated as transient.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code == http.StatusRequestTimeout || gerr.Code >= http.StatusInternalServerError
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted, codes.Unknown:
			return true
		default:
			return false
		}
	}
	return true
}

// GetModel returns the model name for a tier
func (c *RetryClient) GetModel(tier ModelTier) string {
	return c.next.GetModel(tier)
}

// Close releases resources held by the wrapped client
func (c *RetryClient) Close() error {
	return c.next.Close()
}
