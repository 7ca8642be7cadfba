package service

import (
	"testing"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
)

// recordingSink captures snapshots without any external store.
type recordingSink struct {
	saved       []*model.Session
	invalidated []string
}

func (s *recordingSink) Enqueue(session *model.Session) { s.saved = append(s.saved, session) }
func (s *recordingSink) InvalidatePin(pin string)       { s.invalidated = append(s.invalidated, pin) }

func newTestRegistry() (*SessionRegistry, *recordingSink, *testClock) {
	clock := newTestClock()
	validator := NewSessionValidator(config.DefaultSessionConfig())
	validator.now = clock.Now
	sink := &recordingSink{}
	r := NewSessionRegistry(config.DefaultSessionConfig(), validator, sink)
	r.now = clock.Now
	return r, sink, clock
}

func TestCreateSessionIssuesValidPin(t *testing.T) {
	r, sink, _ := newTestRegistry()

	s, err := r.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !IsValidPin(s.Pin) {
		t.Fatalf("pin %q is not 6 numeric digits", s.Pin)
	}
	if !s.IsActive || len(s.Players) != 0 || s.BuzzState.IsLocked {
		t.Fatal("new session should be active, empty, unlocked")
	}
	if len(sink.saved) == 0 {
		t.Fatal("creation should snapshot the session")
	}
}

func TestIsValidPin(t *testing.T) {
	for pin, want := range map[string]bool{
		"123456":  true,
		"000000":  true,
		"12345":   false,
		"1234567": false,
		"12345a":  false,
		"":        false,
	} {
		if got := IsValidPin(pin); got != want {
			t.Errorf("IsValidPin(%q) = %v, want %v", pin, got, want)
		}
	}
}

func TestPinsUniqueAmongActiveSessions(t *testing.T) {
	r, _, _ := newTestRegistry()

	first, err := r.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.Pin == second.Pin {
		t.Fatalf("two active sessions share pin %s", first.Pin)
	}
}

func TestGetSessionByPinScopedToActive(t *testing.T) {
	r, sink, _ := newTestRegistry()

	s, err := r.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}

	found, err := r.GetSessionByPin(s.Pin)
	if err != nil || found.ID != s.ID {
		t.Fatalf("active session should be discoverable by pin: %v", err)
	}

	if err := r.StopSession(s.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := r.GetSessionByPin(s.Pin); RejectCodeOf(err) != CodeSessionNotFound {
		t.Fatalf("stopped session must not resolve by pin, got %v", err)
	}

	// The record itself is retained for audit.
	stopped, err := r.GetSession(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.IsActive || stopped.StoppedAt == nil {
		t.Fatal("stopped session should be retained inactive")
	}

	if len(sink.invalidated) != 1 || sink.invalidated[0] != s.Pin {
		t.Fatalf("pin must be invalidated on stop, got %v", sink.invalidated)
	}
}

func TestAddPlayerCapacity(t *testing.T) {
	r, _, _ := newTestRegistry()

	s, err := r.CreateSession("g1", 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.AddPlayer(s.ID, "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddPlayer(s.ID, "Bob"); RejectCodeOf(err) != CodeSessionFull {
		t.Fatalf("expected SESSION_FULL, got %v", err)
	}
}

func TestAddPlayerRejectsExpiredSession(t *testing.T) {
	r, _, clock := newTestRegistry()

	s, err := r.CreateSession("g1", 0)
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(25 * time.Hour)
	if _, err := r.AddPlayer(s.ID, "Alice"); RejectCodeOf(err) != CodeSessionExpired {
		t.Fatalf("expected SESSION_EXPIRED, got %v", err)
	}
}

func TestRemovePlayerIsSoft(t *testing.T) {
	r, _, _ := newTestRegistry()

	s, _ := r.CreateSession("g1", 0)
	p, _ := r.AddPlayer(s.ID, "Alice")

	if err := r.RemovePlayer(s.ID, p.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := r.GetSession(s.ID)
	member := got.Player(p.ID)
	if member == nil {
		t.Fatal("removed player must stay in the session record")
	}
	if member.IsActive {
		t.Fatal("removed player must be inactive")
	}
}

func TestTeamAssignment(t *testing.T) {
	r, _, _ := newTestRegistry()

	s, _ := r.CreateSession("g1", 0)
	alice, _ := r.AddPlayer(s.ID, "Alice")
	bob, _ := r.AddPlayer(s.ID, "Bob")

	if err := r.AssignPlayerToTeam(s.ID, alice.ID, "t_red"); err != nil {
		t.Fatal(err)
	}

	team, err := r.PlayerTeam(s.ID, alice.ID)
	if err != nil || team != "t_red" {
		t.Fatalf("expected t_red, got %q (%v)", team, err)
	}

	reds, _ := r.PlayersByTeam(s.ID, "t_red")
	if len(reds) != 1 || reds[0].ID != alice.ID {
		t.Fatalf("expected Alice on t_red, got %d players", len(reds))
	}

	free, _ := r.UnassignedPlayers(s.ID)
	if len(free) != 1 || free[0].ID != bob.ID {
		t.Fatalf("expected Bob unassigned, got %d players", len(free))
	}

	if err := r.RemovePlayerFromTeam(s.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if team, _ := r.PlayerTeam(s.ID, alice.ID); team != "" {
		t.Fatalf("expected no team after unassign, got %q", team)
	}
}

func TestClearAllSessions(t *testing.T) {
	r, _, _ := newTestRegistry()

	s, _ := r.CreateSession("g1", 0)
	r.ClearAllSessions()

	if _, err := r.GetSession(s.ID); RejectCodeOf(err) != CodeSessionNotFound {
		t.Fatalf("expected cleared registry, got %v", err)
	}
	if _, err := r.GetSessionByPin(s.Pin); RejectCodeOf(err) != CodeSessionNotFound {
		t.Fatal("pins must be cleared too")
	}
}

func TestRestoreSkipsStoppedAndExpired(t *testing.T) {
	r, _, clock := newTestRegistry()

	now := clock.Now()
	stopped := &model.Session{ID: "s_old", GameID: "g1", Pin: "111111", IsActive: false, CreatedAt: now}
	aged := &model.Session{ID: "s_aged", GameID: "g1", Pin: "222222", IsActive: true, CreatedAt: now.Add(-25 * time.Hour)}
	live := &model.Session{ID: "s_live", GameID: "g1", Pin: "333333", IsActive: true, CreatedAt: now.Add(-time.Hour)}

	if n := r.Restore([]*model.Session{stopped, aged, live}); n != 1 {
		t.Fatalf("expected 1 restored, got %d", n)
	}
	if found, err := r.GetSessionByPin("333333"); err != nil || found.ID != "s_live" {
		t.Fatalf("live session should be restored: %v", err)
	}
}

func TestExpireSessions(t *testing.T) {
	r, _, clock := newTestRegistry()

	s, _ := r.CreateSession("g1", 0)
	clock.Advance(25 * time.Hour)

	stopped := r.ExpireSessions()
	if len(stopped) != 1 || stopped[0] != s.ID {
		t.Fatalf("expected %s expired, got %v", s.ID, stopped)
	}
	if _, err := r.GetSessionByPin(s.Pin); RejectCodeOf(err) != CodeSessionNotFound {
		t.Fatal("expired session must release its pin")
	}
}
