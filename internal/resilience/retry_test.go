package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls, hooks int
	cfg := fastRetry(3)
	cfg.OnRetry = func(int, error) { hooks++ }

	v, err := Retry(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("503"), 503)
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "done" || calls != 3 || hooks != 2 {
		t.Errorf("v=%q calls=%d hooks=%d", v, calls, hooks)
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	var calls int
	perm := errors.New("bad request")
	_, err := Retry(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, perm
	})
	if !errors.Is(err, perm) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastRetry(4), func(context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("timeout"), 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_CustomRetryable(t *testing.T) {
	conflict := errors.New("conflict")
	cfg := fastRetry(3)
	cfg.Retryable = func(err error) bool { return errors.Is(err, conflict) }

	var calls int
	_, err := Retry(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, conflict
	})
	if !errors.Is(err, conflict) || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	var calls int
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, cfg, func(context.Context) (int, error) {
			calls++
			return 0, Transient(errors.New("slow"), 0)
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop on cancel")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"marked", Transient(errors.New("x"), 429), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("%s: IsTransient = %v, want %v", tt.name, got, tt.want)
		}
	}
	if Transient(nil, 500) != nil {
		t.Error("Transient(nil) must be nil")
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		if !IsTransientStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsTransientStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}

func TestBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}.withDefaults()
	cfg.Jitter = 0
	if got := backoff(1, cfg); got != time.Second {
		t.Errorf("attempt 1 = %s", got)
	}
	if got := backoff(2, cfg); got != 2*time.Second {
		t.Errorf("attempt 2 = %s", got)
	}
	if got := backoff(6, cfg); got != 3*time.Second {
		t.Errorf("attempt 6 = %s", got)
	}
}
