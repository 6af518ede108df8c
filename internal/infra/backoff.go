package infra

import (
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// BackoffPolicy is an exponential delay schedule: Base * 2^retry, capped at Max.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is used for gateway reconnects.
var DefaultBackoff = BackoffPolicy{Base: baseDelay, Max: maxDelay}

// quoteBackoff spaces quote retries 500ms, 1s, 2s.
var quoteBackoff = BackoffPolicy{Base: 500 * time.Millisecond, Max: 4 * time.Second}

// Delay returns the backoff duration for a given retry count.
// If retryCount is negative, it returns Base.
func (p BackoffPolicy) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		return p.Base
	}

	// 2^30 * Base is far beyond any sane Max; avoid shift overflow.
	if retryCount > 30 {
		return p.Max
	}

	backoff := p.Base * time.Duration(1<<retryCount)
	if backoff > p.Max || backoff <= 0 {
		return p.Max
	}
	return backoff
}

// CalculateBackoff returns the exponential backoff duration for a given retry count.
// Logic: baseDelay * 2^retryCount, capped at maxDelay.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff.Delay(retryCount)
}
