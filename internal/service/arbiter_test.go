package service

import (
	"sync"
	"testing"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
)

func newTestArbiter() (*BuzzArbiter, *SessionRegistry, *testClock) {
	clock := newTestClock()
	sessionCfg := config.DefaultSessionConfig()
	rateCfg := config.DefaultRateLimitConfig()

	validator := NewSessionValidator(sessionCfg)
	validator.now = clock.Now

	limiter := NewRateLimiter(rateCfg)
	limiter.now = clock.Now

	registry := NewSessionRegistry(sessionCfg, validator, &recordingSink{})
	registry.now = clock.Now

	arbiter := NewBuzzArbiter(registry, limiter, validator, sessionCfg)
	arbiter.now = clock.Now
	return arbiter, registry, clock
}

func TestBuzzHappyPath(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, err := registry.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	bob, _ := registry.AddPlayer(s.ID, "Bob")

	ev, err := arbiter.Buzz(s.ID, alice.ID, clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsWinner || ev.PlayerID != alice.ID {
		t.Fatalf("expected Alice winning event, got %+v", ev)
	}

	clock.Advance(10 * time.Millisecond)
	if _, err := arbiter.Buzz(s.ID, bob.ID, clock.Now()); RejectCodeOf(err) != CodeBuzzLocked {
		t.Fatalf("second buzz should lose with BUZZ_LOCKED, got %v", err)
	}

	winner, err := arbiter.GetBuzzWinner(s.ID)
	if err != nil || winner == nil || winner.ID != alice.ID {
		t.Fatalf("expected Alice as winner, got %+v (%v)", winner, err)
	}

	state, err := arbiter.GetBuzzState(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsLocked || state.WinnerID != alice.ID || len(state.Events) != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestBuzzThrottledIndependentOfLock(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")

	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}

	// Second attempt inside the 1s window trips the limiter before the
	// lock is even consulted.
	clock.Advance(500 * time.Millisecond)
	_, err := arbiter.Buzz(s.ID, alice.ID, clock.Now())
	re, ok := err.(*RejectionError)
	if !ok || re.Code != CodeRateLimited {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if re.RetryAfter <= 0 {
		t.Fatal("rate limit rejection must carry a cool-down")
	}
}

func TestBuzzRejectsStaleClientClock(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")

	_, err := arbiter.Buzz(s.ID, alice.ID, clock.Now().Add(-10*time.Second))
	if RejectCodeOf(err) != CodeInvalidTimestamp {
		t.Fatalf("expected INVALID_TIMESTAMP, got %v", err)
	}

	// Anything past the envelope bound fails before the drift check.
	_, err = arbiter.Buzz(s.ID, alice.ID, clock.Now().Add(-time.Minute))
	if RejectCodeOf(err) != CodeTimestampTooOld {
		t.Fatalf("expected TIMESTAMP_TOO_OLD, got %v", err)
	}

	state, _ := arbiter.GetBuzzState(s.ID)
	if state.IsLocked || len(state.Events) != 0 {
		t.Fatal("rejected buzz must not lock or record an event")
	}
}

func TestBuzzRejectsUnknownPlayer(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	if _, err := arbiter.Buzz(s.ID, "ghost", clock.Now()); RejectCodeOf(err) != CodePlayerNotFound {
		t.Fatalf("expected PLAYER_NOT_FOUND, got %v", err)
	}
	if _, err := arbiter.Buzz("nope", "ghost", clock.Now()); RejectCodeOf(err) != CodeSessionNotFound {
		t.Fatalf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestAtMostOneWinner(t *testing.T) {
	clock := newTestClock()
	sessionCfg := config.DefaultSessionConfig()
	// Generous limiter so the race outcome is decided by the lock alone.
	rateCfg := config.RateLimitConfig{MaxRequests: 100, Window: time.Second, BlockDuration: time.Second}

	validator := NewSessionValidator(sessionCfg)
	validator.now = clock.Now
	limiter := NewRateLimiter(rateCfg)
	limiter.now = clock.Now
	registry := NewSessionRegistry(sessionCfg, validator, &recordingSink{})
	registry.now = clock.Now
	arbiter := NewBuzzArbiter(registry, limiter, validator, sessionCfg)
	arbiter.now = clock.Now

	s, err := registry.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}

	const players = 50
	ids := make([]string, players)
	for i := range ids {
		p, err := registry.AddPlayer(s.ID, "player")
		if err != nil {
			t.Fatal(err)
		}
		ids[i] = p.ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0

	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(playerID string) {
			defer wg.Done()
			<-start
			ev, err := arbiter.Buzz(s.ID, playerID, clock.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && ev != nil && ev.IsWinner:
				winners++
			case RejectCodeOf(err) == CodeBuzzLocked:
				losers++
			default:
				t.Errorf("unexpected outcome for %s: %v", playerID, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if losers != players-1 {
		t.Fatalf("expected %d losers, got %d", players-1, losers)
	}

	state, _ := arbiter.GetBuzzState(s.ID)
	if !state.IsLocked || len(state.Events) != 1 {
		t.Fatalf("expected one locked cycle with one event, got %+v", state)
	}
}

func TestUnlockKeepsWinnerAndEvents(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")

	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}
	if err := arbiter.UnlockBuzz(s.ID); err != nil {
		t.Fatal(err)
	}

	state, _ := arbiter.GetBuzzState(s.ID)
	if state.IsLocked || state.LockExpiresAt != nil {
		t.Fatal("unlock must clear the lock")
	}
	if state.WinnerID != alice.ID || len(state.Events) != 1 {
		t.Fatal("unlock must preserve winner and events")
	}
}

func TestResetBuzzIdempotent(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := arbiter.ResetBuzz(s.ID); err != nil {
			t.Fatal(err)
		}
		state, _ := arbiter.GetBuzzState(s.ID)
		if state.IsLocked || state.WinnerID != "" || state.LockExpiresAt != nil || len(state.Events) != 0 {
			t.Fatalf("reset %d left state %+v", i+1, state)
		}
	}
}

func TestManualLockAndNextCycle(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	bob, _ := registry.AddPlayer(s.ID, "Bob")

	if err := arbiter.LockBuzz(s.ID, alice.ID, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := arbiter.Buzz(s.ID, bob.ID, clock.Now()); RejectCodeOf(err) != CodeBuzzLocked {
		t.Fatalf("manual lock should block the race, got %v", err)
	}

	if err := arbiter.UnlockBuzz(s.ID); err != nil {
		t.Fatal(err)
	}
	ev, err := arbiter.Buzz(s.ID, bob.ID, clock.Now())
	if err != nil || ev.PlayerID != bob.ID {
		t.Fatalf("next cycle should be winnable, got %v (%v)", ev, err)
	}
}

func TestLockExpiresLazilyOnRead(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}

	clock.Advance(4 * time.Second)
	state, err := arbiter.GetBuzzState(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state.IsLocked {
		t.Fatal("stale lock should release on read")
	}
	if state.WinnerID != alice.ID {
		t.Fatal("lazy expiry keeps the winner")
	}
}

func TestSweepReleasesStaleLocksAndPrunesEvents(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Hour)
	arbiter.sweep()

	session, _ := registry.GetSession(s.ID)
	if session.BuzzState.IsLocked {
		t.Fatal("sweep must release the stale lock")
	}
	if len(session.BuzzState.Events) != 0 {
		t.Fatal("sweep must prune events past retention")
	}
}

func TestBuzzBroadcastsState(t *testing.T) {
	arbiter, registry, clock := newTestArbiter()
	bcast := &recordingBroadcaster{}
	arbiter.SetBroadcaster(bcast)

	s, _ := registry.CreateSession("g1", 0)
	alice, _ := registry.AddPlayer(s.ID, "Alice")
	if _, err := arbiter.Buzz(s.ID, alice.ID, clock.Now()); err != nil {
		t.Fatal(err)
	}

	if !bcast.saw("buzz_locked") {
		t.Fatal("winning buzz must broadcast buzz_locked")
	}
}

// recordingBroadcaster captures message types pushed to the hub.
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) record(msgType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, msgType)
}

func (b *recordingBroadcaster) saw(msgType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.types {
		if t == msgType {
			return true
		}
	}
	return false
}

func (b *recordingBroadcaster) BroadcastToHost(sessionID, msgType string, payload interface{}) {
	b.record(msgType)
}

func (b *recordingBroadcaster) BroadcastToPlayer(sessionID, playerID, msgType string, payload interface{}) {
	b.record(msgType)
}

func (b *recordingBroadcaster) BroadcastToAllPlayers(sessionID, msgType string, payload interface{}) {
	b.record(msgType)
}

func (b *recordingBroadcaster) DisconnectSession(sessionID string) {}
