package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/fd1az/arbguard/internal/ratelimit"
)

func TestLimiter_Burst(t *testing.T) {
	l := ratelimit.New(60) // 1/s, burst 6
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	if allowed != 6 {
		t.Errorf("allowed = %d, want 6", allowed)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := ratelimit.New(0)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("call %d denied on unlimited limiter", i)
		}
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := ratelimit.NewWithBurst(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}

func TestKeyed_SeparateBuckets(t *testing.T) {
	k := ratelimit.NewKeyed(10) // burst 1
	if !k.For("uniswap").Allow() {
		t.Fatal("first uniswap call should pass")
	}
	if k.For("uniswap").Allow() {
		t.Error("second uniswap call should be limited")
	}
	if !k.For("aggregator").Allow() {
		t.Error("aggregator has its own bucket")
	}
}
