package service

import (
	"sync"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
)

// RateLimiter throttles requests per participant with a sliding window plus
// a temporary block on violation. Records are created lazily on first
// request and evicted by Cleanup once idle and unblocked.
type RateLimiter struct {
	mu      sync.Mutex
	records map[string]*limitRecord
	cfg     config.RateLimitConfig
	now     func() time.Time
}

type limitRecord struct {
	timestamps   []time.Time
	blockedUntil time.Time
	total        int
}

// LimitResult reports the outcome of one throttle check.
type LimitResult struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"resetAt"`
	Blocked    bool          `json:"blocked"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}

// NewRateLimiter creates a rate limiter with the given policy.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		records: make(map[string]*limitRecord),
		cfg:     cfg,
		now:     time.Now,
	}
}

// CheckLimit decides whether the participant may proceed. A call inside an
// active block does not consume a window slot; a call that fills the window
// beyond capacity earns the participant a block.
func (rl *RateLimiter) CheckLimit(participantID string) LimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rec, ok := rl.records[participantID]
	if !ok {
		rec = &limitRecord{}
		rl.records[participantID] = rec
	}
	rec.total++

	if rec.blockedUntil.After(now) {
		return LimitResult{
			Blocked:    true,
			ResetAt:    rec.blockedUntil,
			RetryAfter: rec.blockedUntil.Sub(now),
		}
	}

	// Slide the window forward.
	cutoff := now.Add(-rl.cfg.Window)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept

	if len(rec.timestamps) >= rl.cfg.MaxRequests {
		rec.blockedUntil = now.Add(rl.cfg.BlockDuration)
		return LimitResult{
			Blocked:    true,
			ResetAt:    rec.blockedUntil,
			RetryAfter: rl.cfg.BlockDuration,
		}
	}

	rec.timestamps = append(rec.timestamps, now)
	return LimitResult{
		Allowed:   true,
		Remaining: rl.cfg.MaxRequests - len(rec.timestamps),
		ResetAt:   rec.timestamps[0].Add(rl.cfg.Window),
	}
}

// BlockPlayer imposes an administrative block for the given duration.
func (rl *RateLimiter) BlockPlayer(participantID string, duration time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.records[participantID]
	if !ok {
		rec = &limitRecord{}
		rl.records[participantID] = rec
	}
	rec.blockedUntil = rl.now().Add(duration)
}

// UnblockPlayer lifts any block on the participant.
func (rl *RateLimiter) UnblockPlayer(participantID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rec, ok := rl.records[participantID]; ok {
		rec.blockedUntil = time.Time{}
	}
}

// IsBlocked reports whether the participant is inside an active block.
func (rl *RateLimiter) IsBlocked(participantID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.records[participantID]
	return ok && rec.blockedUntil.After(rl.now())
}

// Cleanup evicts request history older than twice the window and removes
// idle, unblocked participants. Safe to call concurrently with CheckLimit;
// an active block is never evicted.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-2 * rl.cfg.Window)
	for id, rec := range rl.records {
		kept := rec.timestamps[:0]
		for _, ts := range rec.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		rec.timestamps = kept

		if len(rec.timestamps) == 0 && !rec.blockedUntil.After(now) {
			delete(rl.records, id)
		}
	}
}

// StartCleanup runs Cleanup on the configured interval until stop is closed.
func (rl *RateLimiter) StartCleanup(stop <-chan struct{}) {
	interval := rl.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
