package inference

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls the backoff schedule for retryable failures.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig matches what inference endpoints tolerate in practice:
// a handful of attempts with exponential backoff capped at half a minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   4,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// RetryableClient wraps a Client and retries transient failures. Only errors
// recognized by IsRetryable are retried; everything else surfaces immediately.
type RetryableClient struct {
	inner  Client
	config RetryConfig
}

// NewRetryableClient wraps client with the given retry policy.
func NewRetryableClient(client Client, config RetryConfig) *RetryableClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryableClient{inner: client, config: config}
}

// ModelName returns the wrapped client's model.
func (r *RetryableClient) ModelName() string {
	return r.inner.ModelName()
}

// Complete delegates to the wrapped client, retrying transient failures
// with exponential backoff.
func (r *RetryableClient) Complete(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return Response{}, err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		wait := delay
		if r.config.Jitter {
			// Up to 25% extra so concurrent retries don't stampede.
			wait += time.Duration(rand.Int63n(int64(delay) / 4))
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * r.config.BackoffFactor)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}

	return Response{}, fmt.Errorf("inference failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}
