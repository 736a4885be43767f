package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowExhaustsCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0.001) {
			t.Fatalf("token %d should be available", i)
		}
	}
	if l.Allow("k", 3, 0.001) {
		t.Fatalf("bucket should be empty after capacity draws")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatalf("first draw on a should pass")
	}
	if l.Allow("a", 1, 0.001) {
		t.Fatalf("a should be exhausted")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatalf("b must not share a's bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 100) {
		t.Fatalf("first draw should pass")
	}
	if l.Allow("k", 1, 100) {
		t.Fatalf("bucket should be empty immediately after")
	}
	// 100 tokens/sec refills one token in 10ms
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("k", 1, 100) {
		t.Fatalf("bucket should have refilled")
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	l := New()
	ctx := context.Background()
	if err := l.Wait(ctx, "k", 1, 50); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "k", 1, 50); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("second wait should have blocked for a refill, took %v", time.Since(start))
	}
}

func TestWaitHonorsContextCancel(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), "k", 1, 0.001); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, "k", 1, 0.001)
	if err == nil {
		t.Fatalf("wait on an empty slow bucket must fail when ctx expires")
	}
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
