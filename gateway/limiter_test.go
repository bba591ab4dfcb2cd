package gateway

import (
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1, 5)
	start := time.Now()
	for i := 0; i < 5; i++ {
		l.Wait()
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("burst should not block, took %v", elapsed)
	}
}

func TestTokenBucketThrottles(t *testing.T) {
	l := NewTokenBucketLimiter(20, 1)
	start := time.Now()
	for i := 0; i < 3; i++ {
		l.Wait()
	}
	// 桶容量 1，后两次各需约 50ms 补充
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected throttling, took %v", elapsed)
	}
}

func TestTokenBucketDefaults(t *testing.T) {
	l := NewTokenBucketLimiter(0, 0)
	if l.rate != 1 || l.burst != 1 {
		t.Fatalf("defaults not applied: %v %v", l.rate, l.burst)
	}
}
