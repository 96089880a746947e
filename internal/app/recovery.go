package app

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// Action is the recovery engine's decision for a classified failure
type Action struct {
	Retry bool
	// Delay to wait before the retry. Ignored when UseRetryAfter is set,
	// in which case the caller waits the duration carried by the error.
	Delay         time.Duration
	UseRetryAfter bool
}

// RecoveryEngine maps (category, attempt) to a recovery action. It is a
// pure function of its inputs plus the configured policy; it performs no
// waiting and no I/O itself.
type RecoveryEngine struct {
	cfg domain.RecoveryConfig
	// jitterFn returns a value in [0,1); replaceable in tests
	jitterFn func() float64
}

// NewRecoveryEngine creates an engine with the given retry policy
func NewRecoveryEngine(cfg domain.RecoveryConfig) *RecoveryEngine {
	return &RecoveryEngine{cfg: cfg, jitterFn: rand.Float64}
}

// Decide returns the action for a failure of the given category on the
// given attempt (1-based: attempt 1 is the first failed call).
//
//   - network: retry with exponential backoff up to MaxAttempts
//   - rate_limited: wait the error's retry-after hint, retry once
//   - content_unavailable, validation: never retried
//   - system: never retried, retrying does not change the resource constraint
func (e *RecoveryEngine) Decide(category domain.ErrorCategory, attempt int) Action {
	switch category {
	case domain.CategoryNetwork:
		if attempt >= e.cfg.MaxAttempts {
			return Action{}
		}
		return Action{Retry: true, Delay: e.BackoffDelay(attempt)}
	case domain.CategoryRateLimited:
		if attempt >= 2 {
			return Action{}
		}
		return Action{Retry: true, UseRetryAfter: true, Delay: e.cfg.BaseDelay}
	default:
		return Action{}
	}
}

// BackoffDelay computes the backoff before retry number attempt+1.
// Delays grow by the configured multiplier and carry up to Jitter fraction
// of extra random spread; the result never exceeds MaxDelay.
func (e *RecoveryEngine) BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(e.cfg.BaseDelay) * math.Pow(e.cfg.Multiplier, float64(attempt-1))
	if e.cfg.Jitter > 0 {
		delay += delay * e.cfg.Jitter * e.jitterFn()
	}
	if max := float64(e.cfg.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// Classify assigns an error category. Errors already classified keep their
// category; otherwise the error chain is inspected for well-known transport
// and system conditions. Anything unrecognized is treated as network, the
// only category safe to retry.
func Classify(err error) domain.ErrorCategory {
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Context.Category
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return domain.CategoryNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.CategoryNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CategoryNetwork
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) || errors.Is(err, os.ErrPermission) {
		return domain.CategorySystem
	}

	return domain.CategoryNetwork
}
