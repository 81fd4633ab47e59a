// Package resilience provides the retry and rate limiting used around
// health probes.
//
// # Retry
//
// Retry re-runs a failing probe with constant, linear or exponential
// backoff. It never sleeps past the caller's deadline, so a retried probe
// still settles inside its check timeout:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 100 * time.Millisecond,
//	})
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// # Rate Limiter
//
// RateLimiter is a token bucket that guards report endpoints against scrape
// storms:
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    Rate:  5, // reports per second
//	    Burst: 10,
//	})
//	if !rl.Allow() {
//	    // reject
//	}
package resilience
