package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowWithinBurst(t *testing.T) {
	l := New(50, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("call %d denied inside burst", i)
		}
	}
	if l.Allow() {
		t.Error("call beyond burst allowed immediately")
	}
}

func TestLimiter_DefaultsOnBadInput(t *testing.T) {
	l := New(0, 0)
	if !l.Allow() {
		t.Error("limiter with defaulted settings denied first call")
	}
}

func TestLimiter_WaitHonorsCancellation(t *testing.T) {
	l := New(1, 1)
	// Drain the single burst token.
	if !l.Allow() {
		t.Fatal("first call denied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait returned nil while rate limited under a short deadline")
	}
}
