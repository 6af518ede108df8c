package infra

import (
	"testing"
	"time"
)

func TestKeyedLimiter_Burst(t *testing.T) {
	kl := NewKeyedLimiter(1, 2)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kl.now = func() time.Time { return at }

	if !kl.Allow(1) || !kl.Allow(1) {
		t.Fatal("burst of 2 should be allowed")
	}
	if kl.Allow(1) {
		t.Error("third request inside the same instant should be refused")
	}
	if !kl.Allow(2) {
		t.Error("a different chat has its own bucket")
	}
}

func TestKeyedLimiter_Refill(t *testing.T) {
	kl := NewKeyedLimiter(10, 1)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kl.now = func() time.Time { return at }

	if !kl.Allow(7) {
		t.Fatal("first request should pass")
	}
	if kl.Allow(7) {
		t.Fatal("bucket should be empty")
	}

	at = at.Add(100 * time.Millisecond)
	if !kl.Allow(7) {
		t.Error("one token should refill after 100ms at 10/s")
	}
}

func TestKeyedLimiter_Prune(t *testing.T) {
	kl := NewKeyedLimiter(1, 1)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kl.now = func() time.Time { return at }

	kl.Allow(1)
	at = at.Add(time.Hour)
	kl.Allow(2)

	if n := kl.Prune(time.Minute); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if kl.Len() != 1 {
		t.Errorf("Len = %d, want 1", kl.Len())
	}
}
