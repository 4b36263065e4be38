package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

// noSleep records requested delays without sleeping.
func noSleep(delays *[]time.Duration) Sleeper {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDelayFor(t *testing.T) {
	p := Policy{Attempts: 3, Base: 5 * time.Second, Growth: 5 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 15 * time.Second},
		{-1, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Base: time.Second}

	calls := 0
	err := p.Retry(context.Background(), noSleep(&delays), nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(delays) != 0 {
		t.Errorf("calls = %d, delays = %v", calls, delays)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	p := Policy{Attempts: 3, Base: time.Second, Growth: time.Second}
	transient := errors.New("unavailable")

	calls := 0
	err := p.Retry(context.Background(), noSleep(&delays), func(error) bool { return true }, func() error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v, want %v", err, transient)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Linear growth: sleeps before attempts 1 and 2.
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 3*time.Second {
		t.Errorf("delays = %v", delays)
	}
}

func TestRetry_PermanentErrorStops(t *testing.T) {
	p := Policy{Attempts: 5, Base: time.Second}
	permanent := errors.New("invalid argument")

	calls := 0
	err := p.Retry(context.Background(), noSleep(&[]time.Duration{}), func(error) bool { return false }, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	p := Policy{Attempts: 3, Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Retry(ctx, nil, func(error) bool { return true }, func() error {
		calls++
		return errors.New("unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
