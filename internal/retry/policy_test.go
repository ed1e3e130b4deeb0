package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestPolicy_SucceedsThirdAttempt(t *testing.T) {
	var delays []time.Duration
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times, want %d", len(delays), len(want))
	}
	for i, d := range want {
		if delays[i] != d {
			t.Errorf("delay %d = %v, want %v", i, delays[i], d)
		}
	}
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	transient := errors.New("unavailable")
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return transient
	})

	if !errors.Is(err, transient) {
		t.Errorf("err = %v, want the last transient error", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	// 1s, 2s; no sleep after the final attempt.
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2", len(delays))
	}
}

func TestPolicy_PermanentStopsImmediately(t *testing.T) {
	var delays []time.Duration
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: fakeSleep(&delays)}

	wrapped := errors.New("claim contradicted")
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		return Stop(wrapped)
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, wrapped) {
		t.Errorf("err = %v, want the unwrapped permanent error", err)
	}
	if len(delays) != 0 {
		t.Error("permanent errors must not back off")
	}
}

func TestPolicy_CancellationAbortsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}

	start := time.Now()
	calls := 0
	_, err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation waited for the backoff delay")
	}
}

func TestPolicy_CallTimeoutBoundsAttempt(t *testing.T) {
	var delays []time.Duration
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, CallTimeout: 10 * time.Millisecond, Sleep: fakeSleep(&delays)}

	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (timeout counts as a failed attempt)", attempts)
	}
}
