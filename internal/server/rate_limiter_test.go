package server

import (
	"sync"
	"testing"
	"time"
)

func newTestLimiter(burst int, interval time.Duration) (*rateLimiter, *time.Time) {
	rl := newRateLimiter(RateLimitConfig{Burst: burst, RefillInterval: interval})
	clock := time.Unix(1_700_000_000, 0)
	rl.lastCheck = clock
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	if rl != nil {
		t.Fatalf("newRateLimiter with zero burst = %+v, want nil", rl)
	}
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatal("nil limiter rejected a command")
		}
	}
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl, clock := newTestLimiter(3, 3*time.Second)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("allow() #%d = false within burst", i+1)
		}
	}
	if rl.allow() {
		t.Fatal("allow() = true after burst exhausted")
	}

	*clock = clock.Add(time.Second)
	if !rl.allow() {
		t.Error("allow() = false after one token refilled")
	}
	if rl.allow() {
		t.Error("allow() = true with no tokens left")
	}

	// Refill never exceeds the burst size.
	*clock = clock.Add(time.Hour)
	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("allow() #%d = false after full refill", i+1)
		}
	}
	if rl.allow() {
		t.Error("allow() = true beyond capacity")
	}
}

func TestRateLimiter_DefaultInterval(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Burst: 5})
	if rl.rate != 5 {
		t.Errorf("rate = %v tokens/s, want 5", rl.rate)
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl, _ := newTestLimiter(50, time.Hour)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if rl.allow() {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want exactly 50", allowed)
	}
}
