package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vid-extract-go/internal/domain"
)

// CircuitState is the breaker state machine position
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// PlatformLimiter combines a token bucket with a circuit breaker for one
// platform. The bucket governs steady-state throughput, the breaker governs
// failure-mode throughput; they share state but stay separate counters.
// All state is mutated under one mutex per platform, never held across the
// external call: Acquire decides and releases, RecordSuccess/RecordFailure
// re-acquire briefly afterwards.
type PlatformLimiter struct {
	platform domain.Platform
	cfg      domain.RateLimitConfig
	logger   *zap.Logger

	mu            sync.Mutex
	tokens        float64
	lastRefill    time.Time
	failureTimes  []time.Time // sliding window of recent failures
	consecutive   int
	state         CircuitState
	openUntil     time.Time
	cooldown      time.Duration
	probeInFlight bool

	now func() time.Time
}

// NewPlatformLimiter creates a limiter with a full bucket and a closed breaker
func NewPlatformLimiter(platform domain.Platform, cfg domain.RateLimitConfig, logger *zap.Logger) *PlatformLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &PlatformLimiter{
		platform: platform,
		cfg:      cfg,
		logger:   logger,
		tokens:   float64(cfg.BucketCapacity),
		state:    CircuitClosed,
		cooldown: cfg.OpenCooldown,
		now:      time.Now,
	}
	l.lastRefill = l.now()
	return l
}

// Acquire blocks cooperatively until a token is available, the configured
// acquire timeout elapses, or ctx is cancelled. While the breaker is open
// it fails fast with no waiting at all.
func (l *PlatformLimiter) Acquire(ctx context.Context) error {
	deadline := l.now().Add(l.cfg.AcquireTimeout)

	for {
		wait, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}

		now := l.now()
		if now.Add(wait).After(deadline) {
			retryAfter := wait
			return domain.NewRateLimitError("rate-limit", string(l.platform), retryAfter,
				fmt.Errorf("no token available within %s", l.cfg.AcquireTimeout))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire returns (0, nil) when a token was taken, a positive wait hint
// when the caller should retry after refill, or an error when the breaker
// rejects the call outright.
func (l *PlatformLimiter) tryAcquire() (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	switch l.state {
	case CircuitOpen:
		if now.Before(l.openUntil) {
			return 0, domain.NewRateLimitError("circuit-breaker", string(l.platform),
				l.openUntil.Sub(now),
				fmt.Errorf("circuit open for %s until %s", l.platform, l.openUntil.Format(time.RFC3339)))
		}
		// Cool-down elapsed: permit a single probe
		l.state = CircuitHalfOpen
		l.probeInFlight = false
		l.logger.Info("Circuit half-open, allowing probe", zap.String("platform", string(l.platform)))
	case CircuitHalfOpen:
		if l.probeInFlight {
			return 0, domain.NewRateLimitError("circuit-breaker", string(l.platform),
				l.cooldown,
				fmt.Errorf("circuit half-open for %s, probe already in flight", l.platform))
		}
	}

	l.refillLocked(now)
	if l.tokens >= 1 {
		l.tokens--
		if l.state == CircuitHalfOpen {
			l.probeInFlight = true
		}
		return 0, nil
	}

	// Time until the next whole token
	need := 1 - l.tokens
	wait := time.Duration(need * float64(l.cfg.RefillInterval))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, nil
}

func (l *PlatformLimiter) refillLocked(now time.Time) {
	if l.cfg.RefillInterval <= 0 {
		l.tokens = float64(l.cfg.BucketCapacity)
		return
	}
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.tokens += float64(elapsed) / float64(l.cfg.RefillInterval)
	if l.tokens > float64(l.cfg.BucketCapacity) {
		l.tokens = float64(l.cfg.BucketCapacity)
	}
	l.lastRefill = now
}

// RecordSuccess resets the consecutive-failure counter and closes the
// breaker after a successful half-open probe
func (l *PlatformLimiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutive = 0
	if l.state == CircuitHalfOpen {
		l.state = CircuitClosed
		l.probeInFlight = false
		l.cooldown = l.cfg.OpenCooldown
		l.failureTimes = nil
		l.logger.Info("Circuit closed after successful probe", zap.String("platform", string(l.platform)))
	}
}

// RecordFailure counts a failure toward the breaker threshold. A failed
// half-open probe reopens the breaker with the cool-down doubled, up to
// the configured cap.
func (l *PlatformLimiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.consecutive++
	l.failureTimes = append(l.failureTimes, now)
	l.pruneWindowLocked(now)

	switch l.state {
	case CircuitHalfOpen:
		l.probeInFlight = false
		l.cooldown *= 2
		if l.cooldown > l.cfg.MaxCooldown {
			l.cooldown = l.cfg.MaxCooldown
		}
		l.openLocked(now)
	case CircuitClosed:
		if len(l.failureTimes) >= l.cfg.FailureThreshold {
			l.openLocked(now)
		}
	}
}

func (l *PlatformLimiter) openLocked(now time.Time) {
	l.state = CircuitOpen
	l.openUntil = now.Add(l.cooldown)
	l.logger.Warn("Circuit opened",
		zap.String("platform", string(l.platform)),
		zap.Duration("cooldown", l.cooldown),
		zap.Int("recent_failures", len(l.failureTimes)))
}

func (l *PlatformLimiter) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.FailureWindow)
	kept := l.failureTimes[:0]
	for _, t := range l.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.failureTimes = kept
}

// State returns the current breaker state
func (l *PlatformLimiter) State() CircuitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LimiterTable holds one limiter per platform, created on first use so
// platforms never contend on each other's lock
type LimiterTable struct {
	mu       sync.Mutex
	cfg      domain.RateLimitConfig
	logger   *zap.Logger
	limiters map[domain.Platform]*PlatformLimiter
}

// NewLimiterTable creates an empty table sharing one config
func NewLimiterTable(cfg domain.RateLimitConfig, logger *zap.Logger) *LimiterTable {
	return &LimiterTable{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[domain.Platform]*PlatformLimiter),
	}
}

// For returns the limiter for a platform, creating it if needed
func (t *LimiterTable) For(platform domain.Platform) *PlatformLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.limiters[platform]; ok {
		return l
	}
	l := NewPlatformLimiter(platform, t.cfg, t.logger)
	t.limiters[platform] = l
	return l
}
