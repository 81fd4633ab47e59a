package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	cfg := rl.Config()

	if cfg.Rate != 100 {
		t.Errorf("Rate = %v, want 100", cfg.Rate)
	}
	if cfg.Burst != 10 {
		t.Errorf("Burst = %v, want 10", cfg.Burst)
	}
	if cfg.MaxWait != time.Second {
		t.Errorf("MaxWait = %v, want 1s", cfg.MaxWait)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  0.01,
		Burst: 3,
	})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("Allow() #%d = false, want true", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() after burst = true, want false")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  100,
		Burst: 1,
	})

	rl.Allow()
	time.Sleep(30 * time.Millisecond)

	if !rl.Allow() {
		t.Error("Allow() after refill = false, want true")
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    1000,
		Burst:   1,
		MaxWait: 100 * time.Millisecond,
	})

	rl.Allow()

	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestRateLimiter_WaitExceedsMaxWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    0.1,
		Burst:   1,
		MaxWait: 10 * time.Millisecond,
	})

	rl.Allow()

	start := time.Now()
	err := rl.Wait(context.Background())
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("Wait() error = %v, want ErrRateLimitExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Wait() took %v, want an immediate failure", elapsed)
	}
}

func TestRateLimiter_WaitContextCancellation(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:    2,
		Burst:   1,
		MaxWait: time.Second,
	})

	rl.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := rl.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	t.Run("without wait", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Rate:  0.01,
			Burst: 1,
		})

		if err := rl.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Errorf("first Execute() error = %v", err)
		}
		err := rl.Execute(context.Background(), func(context.Context) error { return nil })
		if !errors.Is(err, ErrRateLimitExceeded) {
			t.Errorf("second Execute() error = %v, want ErrRateLimitExceeded", err)
		}
	})

	t.Run("with wait", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Rate:        1000,
			Burst:       1,
			WaitOnLimit: true,
			MaxWait:     100 * time.Millisecond,
		})

		rl.Allow()

		called := false
		err := rl.Execute(context.Background(), func(context.Context) error {
			called = true
			return nil
		})
		if err != nil || !called {
			t.Errorf("Execute() error = %v, called = %v", err, called)
		}
	})
}

func TestRateLimiter_Tokens(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:  0.01,
		Burst: 10,
	})

	if tokens := rl.Tokens(); tokens < 9.99 || tokens > 10 {
		t.Errorf("Tokens() = %v, want 10", tokens)
	}
	rl.Allow()
	if tokens := rl.Tokens(); tokens >= 10 {
		t.Errorf("Tokens() after Allow = %v, want < 10", tokens)
	}
}
