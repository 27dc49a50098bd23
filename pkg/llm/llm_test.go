package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: slow down", ErrRateLimited)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryAbortsOnBadRequest(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("%w: invalid model", ErrBadRequest)
	})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("Retry() = %v, want ErrBadRequest", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on bad request)", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Retry() = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryPolicy{Attempts: 5, Initial: time.Hour, Max: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestCompleteWithRetry(t *testing.T) {
	m := NewMock()
	m.QueueErr(fmt.Errorf("%w", ErrRateLimited))
	m.Queue(`{"ok":true}`)

	out, err := CompleteWithRetry(context.Background(), m, fastPolicy(3), "hello", Options{})
	if err != nil {
		t.Fatalf("CompleteWithRetry() error = %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("out = %q", out)
	}
	if m.Calls != 2 {
		t.Fatalf("Calls = %d, want 2", m.Calls)
	}
}

func TestMockQueueAndFallback(t *testing.T) {
	m := NewMock("first", "second")
	m.Fallback = "done"

	ctx := context.Background()
	for i, want := range []string{"first", "second", "done", "done"} {
		got, err := m.Complete(ctx, fmt.Sprintf("p%d", i), Options{})
		if err != nil {
			t.Fatalf("Complete(%d) error = %v", i, err)
		}
		if got != want {
			t.Fatalf("Complete(%d) = %q, want %q", i, got, want)
		}
	}
	if len(m.Prompts) != 4 {
		t.Fatalf("Prompts = %d, want 4", len(m.Prompts))
	}
}

func TestMockExhaustedWithoutFallback(t *testing.T) {
	m := NewMock()
	if _, err := m.Complete(context.Background(), "p", Options{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Complete() = %v, want ErrUnavailable", err)
	}
}
