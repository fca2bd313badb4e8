// Package matrix provides the Matrix client side of the DM index: account data,
// room membership and the /sync loop that keeps both current.
package matrix

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// RateLimitConfig defines rate limiting configuration for Matrix operations
type RateLimitConfig struct {
	// AccountData limits account data reads and writes
	AccountData TokenBucketConfig `json:"account_data"`
	// RoomQueries limits room member lookups
	RoomQueries TokenBucketConfig `json:"room_queries"`
	// Enabled controls whether rate limiting is active
	Enabled bool `json:"enabled"`
}

// TokenBucketConfig defines token bucket algorithm parameters
type TokenBucketConfig struct {
	// Rate is tokens per second to add to bucket
	Rate float64 `json:"rate"`
	// BurstSize is maximum tokens the bucket can hold
	BurstSize int `json:"burst_size"`
	// Interval is minimum time between operations (alternative to rate-based limiting)
	Interval time.Duration `json:"interval,omitempty"`
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64       // tokens per second
	burstSize  int           // maximum tokens
	tokens     float64       // current tokens
	lastRefill time.Time     // last refill time
	interval   time.Duration // minimum interval between operations
	lastOp     time.Time     // last operation time (for interval-based limiting)
}

// NewTokenBucket creates a new token bucket with the given configuration
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	tb := &TokenBucket{
		rate:       config.Rate,
		burstSize:  config.BurstSize,
		tokens:     float64(config.BurstSize), // Start with full bucket
		lastRefill: time.Now(),
		interval:   config.Interval,
		lastOp:     time.Time{},
	}
	return tb
}

// Allow checks if an operation is allowed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()

	// If using interval-based limiting, check minimum interval
	if tb.interval > 0 {
		if !tb.lastOp.IsZero() && now.Sub(tb.lastOp) < tb.interval {
			return false
		}
		tb.lastOp = now
		return true
	}

	// Token bucket algorithm
	// Add tokens based on time elapsed
	elapsed := now.Sub(tb.lastRefill)
	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > float64(tb.burstSize) {
		tb.tokens = float64(tb.burstSize)
	}
	tb.lastRefill = now

	// Check if we have enough tokens
	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until an operation is allowed, then consumes a token
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		// Calculate wait time
		waitTime := tb.getWaitTime()
		if waitTime <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
			// Continue loop to try again
		}
	}
}

// getWaitTime calculates how long to wait before next operation is allowed
func (tb *TokenBucket) getWaitTime() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()

	// For interval-based limiting
	if tb.interval > 0 {
		if tb.lastOp.IsZero() {
			return 0
		}
		elapsed := now.Sub(tb.lastOp)
		if elapsed >= tb.interval {
			return 0
		}
		return tb.interval - elapsed
	}

	// For token bucket
	if tb.tokens >= 1.0 {
		return 0
	}

	// Time to get 1 token
	tokensNeeded := 1.0 - tb.tokens
	if tb.rate <= 0 {
		return time.Hour // Effectively disabled
	}
	return time.Duration(tokensNeeded / tb.rate * float64(time.Second))
}

// DefaultRateLimitConfig returns sensible defaults for production use
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true,
		// Account data: m.direct changes rarely, but a repair burst may touch it a few times
		AccountData: TokenBucketConfig{
			Rate:      0.5, // 0.5 requests per second sustained
			BurstSize: 5,
			Interval:  0,
		},
		// Room queries: one /members call per unknown room during a repair
		RoomQueries: TokenBucketConfig{
			Rate:      2, // 2 lookups per second sustained
			BurstSize: 20,
			Interval:  0,
		},
	}
}

// TestRateLimitConfig returns more aggressive limits suitable for tests
func TestRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true,
		AccountData: TokenBucketConfig{
			Rate:      0, // Disable token bucket
			BurstSize: 0,
			Interval:  500 * time.Millisecond,
		},
		RoomQueries: TokenBucketConfig{
			Rate:      1,
			BurstSize: 5,
			Interval:  0,
		},
	}
}

// IsRateLimitError checks if an error is a Matrix 429 rate limit error
func IsRateLimitError(err error) bool {
	var matrixErr *Error
	if errors.As(err, &matrixErr) {
		return matrixErr.StatusCode == http.StatusTooManyRequests || matrixErr.ErrCode == ErrCodeLimitExceeded
	}
	return false
}
