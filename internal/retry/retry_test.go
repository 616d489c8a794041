package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("HTTP %d", int(e)) }
func (e statusErr) HTTPStatus() int { return int(e) }

func TestWithBackoff_Success(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0

	err := WithBackoff(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return statusErr(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_FailureAfterMaxRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond}
	attempts := 0

	err := WithBackoff(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return statusErr(500)
	})
	if err == nil {
		t.Fatal("Expected failure, got success")
	}
	if attempts != 3 {
		t.Fatalf("Expected 3 attempts, got %d", attempts)
	}
	var sc StatusCoder
	if !errors.As(err, &sc) || sc.HTTPStatus() != 500 {
		t.Errorf("expected wrapped status error, got %v", err)
	}
}

func TestWithBackoff_NonRetryable(t *testing.T) {
	cfg := Config{MaxRetries: 3, BaseDelay: time.Millisecond}
	attempts := 0

	err := WithBackoff(context.Background(), cfg, func(ctx context.Context) error {
		attempts++
		return statusErr(404)
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Fatalf("Expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	cfg := Config{MaxRetries: 5, BaseDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := WithBackoff(ctx, cfg, func(ctx context.Context) error {
		attempts++
		cancel()
		return statusErr(503)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("Expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_RetriesClientTimeout(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	cfg := Config{MaxRetries: 2, BaseDelay: time.Millisecond}
	err := WithBackoff(context.Background(), cfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	})
	if err != nil {
		t.Fatalf("expected the timed out request to be retried, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", statusErr(503), true},
		{"429", fmt.Errorf("search: %w", statusErr(429)), true},
		{"404", statusErr(404), false},
		{"net", &net.DNSError{Err: "no such host", IsTimeout: true}, true},
		{"cancelled", context.Canceled, false},
		{"timeout", context.DeadlineExceeded, true},
		{"plain", errors.New("decode failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHTTPStatusRetryable(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	} {
		if got := HTTPStatusRetryable(code); got != want {
			t.Errorf("HTTPStatusRetryable(%d) = %v, want %v", code, got, want)
		}
	}
}
