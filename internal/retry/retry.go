package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
	}
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// WithBackoff executes op with exponential backoff and jitter.
// Non-retryable errors are returned immediately.
func WithBackoff(ctx context.Context, cfg Config, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
		if !Retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay * time.Duration(1<<attempt)
		if cfg.BaseDelay > 0 {
			delay += time.Duration(rand.Int64N(int64(cfg.BaseDelay)))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxRetries+1, err)
}

// Retryable reports whether err is worth another attempt: 5xx and 429
// responses, timeouts and other network errors. Cancellation and 4xx
// responses are not retried. An http.Client timeout also matches
// context.DeadlineExceeded, so network errors are checked first; WithBackoff
// tells a cancelled caller apart through its own context.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return HTTPStatusRetryable(sc.HTTPStatus())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// HTTPStatusRetryable checks if an HTTP status code is retryable.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
