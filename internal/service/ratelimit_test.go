package service

import (
	"testing"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
)

func newTestLimiter(maxRequests int, window, block time.Duration) (*RateLimiter, *testClock) {
	clock := newTestClock()
	rl := NewRateLimiter(config.RateLimitConfig{
		MaxRequests:   maxRequests,
		Window:        window,
		BlockDuration: block,
	})
	rl.now = clock.Now
	return rl, clock
}

func TestCheckLimitSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Second, 5*time.Second)

	r := rl.CheckLimit("p1")
	if !r.Allowed || r.Remaining != 1 {
		t.Fatalf("first call: got allowed=%v remaining=%d", r.Allowed, r.Remaining)
	}

	r = rl.CheckLimit("p1")
	if !r.Allowed || r.Remaining != 0 {
		t.Fatalf("second call: got allowed=%v remaining=%d", r.Allowed, r.Remaining)
	}

	r = rl.CheckLimit("p1")
	if r.Allowed || !r.Blocked {
		t.Fatalf("third call should block, got allowed=%v blocked=%v", r.Allowed, r.Blocked)
	}
	if r.RetryAfter != 5*time.Second {
		t.Fatalf("expected 5s retry-after, got %s", r.RetryAfter)
	}

	// Still inside the block even though the window has passed.
	clock.Advance(2 * time.Second)
	if r := rl.CheckLimit("p1"); r.Allowed {
		t.Fatal("call inside block should be rejected")
	}

	// Block elapsed, window empty again.
	clock.Advance(4 * time.Second)
	if r := rl.CheckLimit("p1"); !r.Allowed {
		t.Fatal("call after block should be allowed")
	}
}

func TestCheckLimitIsolatesParticipants(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Second, 5*time.Second)

	if r := rl.CheckLimit("p1"); !r.Allowed {
		t.Fatal("p1 first call should be allowed")
	}
	if r := rl.CheckLimit("p2"); !r.Allowed {
		t.Fatal("p2 should not share p1's window")
	}
	if r := rl.CheckLimit("p1"); r.Allowed {
		t.Fatal("p1 second call inside window should block")
	}
}

func TestBlockedCallDoesNotConsumeSlot(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Second, 2*time.Second)

	rl.BlockPlayer("p1", 2*time.Second)
	if r := rl.CheckLimit("p1"); !r.Blocked {
		t.Fatal("expected blocked result")
	}

	clock.Advance(3 * time.Second)
	if r := rl.CheckLimit("p1"); !r.Allowed {
		t.Fatal("window should be empty after block expires")
	}
}

func TestUnblockPlayer(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Second, time.Minute)

	rl.BlockPlayer("p1", time.Minute)
	if !rl.IsBlocked("p1") {
		t.Fatal("expected p1 blocked")
	}

	rl.UnblockPlayer("p1")
	if rl.IsBlocked("p1") {
		t.Fatal("expected p1 unblocked")
	}
	if r := rl.CheckLimit("p1"); !r.Allowed {
		t.Fatal("unblocked player should be allowed")
	}
}

func TestCleanupKeepsActiveBlocks(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Second, time.Minute)

	rl.CheckLimit("idle")
	rl.BlockPlayer("banned", time.Minute)

	clock.Advance(10 * time.Second)
	rl.Cleanup()

	rl.mu.Lock()
	_, idleKept := rl.records["idle"]
	_, bannedKept := rl.records["banned"]
	rl.mu.Unlock()

	if idleKept {
		t.Fatal("idle unblocked participant should be evicted")
	}
	if !bannedKept {
		t.Fatal("active block must survive cleanup")
	}
}
