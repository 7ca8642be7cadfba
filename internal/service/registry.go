package service

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
)

var pinPattern = regexp.MustCompile(`^\d{6}$`)

// IsValidPin reports whether pin is a well-formed 6-digit join code.
func IsValidPin(pin string) bool {
	return pinPattern.MatchString(pin)
}

// SessionSink receives session snapshots and PIN invalidations for external
// persistence. Implementations must not block the caller.
type SessionSink interface {
	Enqueue(session *model.Session)
	InvalidatePin(pin string)
}

type sessionEntry struct {
	mu      sync.Mutex
	session *model.Session
}

// SessionRegistry owns the authoritative set of sessions and their players.
// It is the sole mutator of session state; every mutation runs under that
// session's lock and is snapshotted to the sink afterwards, never while the
// lock is held.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	pins     map[string]string // pin -> session id, active sessions only

	cfg       config.SessionConfig
	validator *SessionValidator
	sink      SessionSink
	bcast     Broadcaster
	now       func() time.Time
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(cfg config.SessionConfig, validator *SessionValidator, sink SessionSink) *SessionRegistry {
	return &SessionRegistry{
		sessions:  make(map[string]*sessionEntry),
		pins:      make(map[string]string),
		cfg:       cfg,
		validator: validator,
		sink:      sink,
		now:       time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (r *SessionRegistry) SetBroadcaster(b Broadcaster) {
	r.bcast = b
}

// CreateSession starts a new live session for the given game and issues its
// join PIN. A PIN colliding with another active session is regenerated, not
// tolerated.
func (r *SessionRegistry) CreateSession(gameID string, maxPlayers int) (*model.Session, error) {
	if gameID == "" {
		return nil, reject(CodeMissingFields, "gameId is required")
	}

	r.mu.Lock()
	pin, err := r.generatePin()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	session := &model.Session{
		ID:         "s_" + uuid.New().String()[:8],
		GameID:     gameID,
		Pin:        pin,
		IsActive:   true,
		CreatedAt:  r.now(),
		MaxPlayers: maxPlayers,
		Players:    []*model.Player{},
		BuzzState:  model.BuzzState{Events: []*model.BuzzEvent{}},
	}
	r.sessions[session.ID] = &sessionEntry{session: session}
	r.pins[pin] = session.ID
	r.mu.Unlock()

	r.snapshot(session)
	return session.Clone(), nil
}

// StopSession marks the session stopped and invalidates its PIN immediately.
// Stopped sessions are retained for audit but are no longer joinable.
func (r *SessionRegistry) StopSession(sessionID string) error {
	var pin string
	err := r.update(sessionID, func(s *model.Session) error {
		if !s.IsActive {
			return reject(CodeSessionInactive, "session already stopped")
		}
		now := r.now()
		s.IsActive = false
		s.StoppedAt = &now
		pin = s.Pin
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.pins, pin)
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.InvalidatePin(pin)
	}
	if r.bcast != nil {
		r.bcast.BroadcastToAllPlayers(sessionID, "session_stopped", map[string]string{"sessionId": sessionID})
		r.bcast.BroadcastToHost(sessionID, "session_stopped", map[string]string{"sessionId": sessionID})
		r.bcast.DisconnectSession(sessionID)
	}
	return nil
}

// GetSession returns a copy of the session, stopped sessions included.
func (r *SessionRegistry) GetSession(sessionID string) (*model.Session, error) {
	entry := r.entry(sessionID)
	if entry == nil {
		return nil, reject(CodeSessionNotFound, "session not found")
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// GetSessionByPin looks the PIN up among active sessions only. A stopped
// session is not discoverable by PIN even though it is still retained by id.
func (r *SessionRegistry) GetSessionByPin(pin string) (*model.Session, error) {
	if !IsValidPin(pin) {
		return nil, reject(CodeSessionNotFound, "malformed pin")
	}
	r.mu.RLock()
	id, ok := r.pins[pin]
	r.mu.RUnlock()
	if !ok {
		return nil, reject(CodeSessionNotFound, "no active session with this pin")
	}
	return r.GetSession(id)
}

// AddPlayer joins a new player into the session.
func (r *SessionRegistry) AddPlayer(sessionID, name string) (*model.Player, error) {
	if name == "" {
		return nil, reject(CodeMissingFields, "player name is required")
	}

	var player *model.Player
	err := r.update(sessionID, func(s *model.Session) error {
		if res := r.validator.ValidateSession(s); !res.Valid {
			return res.Err()
		}
		if s.MaxPlayers > 0 && s.ActivePlayerCount() >= s.MaxPlayers {
			return reject(CodeSessionFull, "session is full")
		}
		now := r.now()
		player = &model.Player{
			ID:         "p_" + uuid.New().String()[:8],
			SessionID:  s.ID,
			Name:       name,
			JoinedAt:   now,
			LastSeenAt: now,
			IsActive:   true,
		}
		s.Players = append(s.Players, player)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.bcast != nil {
		r.bcast.BroadcastToHost(sessionID, "player_joined", map[string]string{
			"playerId": player.ID,
			"name":     player.Name,
		})
	}
	cp := *player
	return &cp, nil
}

// RemovePlayer soft-removes the player. The record stays in the session
// until the session itself is cleared.
func (r *SessionRegistry) RemovePlayer(sessionID, playerID string) error {
	err := r.update(sessionID, func(s *model.Session) error {
		player := s.Player(playerID)
		if player == nil {
			return reject(CodePlayerNotFound, "player is not a member of this session")
		}
		player.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}

	if r.bcast != nil {
		r.bcast.BroadcastToHost(sessionID, "player_left", map[string]string{"playerId": playerID})
	}
	return nil
}

// UpdatePlayer renames the player.
func (r *SessionRegistry) UpdatePlayer(sessionID, playerID, name string) error {
	if name == "" {
		return reject(CodeMissingFields, "player name is required")
	}
	return r.update(sessionID, func(s *model.Session) error {
		player := s.Player(playerID)
		if player == nil {
			return reject(CodePlayerNotFound, "player is not a member of this session")
		}
		player.Name = name
		player.LastSeenAt = r.now()
		return nil
	})
}

// AssignPlayerToTeam sets the player's team. Team existence is the external
// game's concern, so the id is a plain field set here.
func (r *SessionRegistry) AssignPlayerToTeam(sessionID, playerID, teamID string) error {
	if teamID == "" {
		return reject(CodeMissingFields, "team id is required")
	}
	err := r.update(sessionID, func(s *model.Session) error {
		player := s.Player(playerID)
		if player == nil {
			return reject(CodePlayerNotFound, "player is not a member of this session")
		}
		player.TeamID = teamID
		player.LastSeenAt = r.now()
		return nil
	})
	if err != nil {
		return err
	}

	if r.bcast != nil {
		r.bcast.BroadcastToAllPlayers(sessionID, "team_assigned", map[string]string{
			"playerId": playerID,
			"teamId":   teamID,
		})
	}
	return nil
}

// RemovePlayerFromTeam clears the player's team assignment.
func (r *SessionRegistry) RemovePlayerFromTeam(sessionID, playerID string) error {
	return r.update(sessionID, func(s *model.Session) error {
		player := s.Player(playerID)
		if player == nil {
			return reject(CodePlayerNotFound, "player is not a member of this session")
		}
		player.TeamID = ""
		return nil
	})
}

// PlayersByTeam returns the active players assigned to the team.
func (r *SessionRegistry) PlayersByTeam(sessionID, teamID string) ([]*model.Player, error) {
	session, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	var out []*model.Player
	for _, p := range session.Players {
		if p.IsActive && p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out, nil
}

// UnassignedPlayers returns the active players without a team.
func (r *SessionRegistry) UnassignedPlayers(sessionID string) ([]*model.Player, error) {
	session, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	var out []*model.Player
	for _, p := range session.Players {
		if p.IsActive && p.TeamID == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// PlayerTeam returns the player's team id, empty when unassigned.
func (r *SessionRegistry) PlayerTeam(sessionID, playerID string) (string, error) {
	session, err := r.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	player := session.Player(playerID)
	if player == nil {
		return "", reject(CodePlayerNotFound, "player is not a member of this session")
	}
	return player.TeamID, nil
}

// ClearAllSessions drops every session and PIN. Used for testing and for
// operational recovery.
func (r *SessionRegistry) ClearAllSessions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*sessionEntry)
	r.pins = make(map[string]string)
}

// Restore repopulates the registry from persisted sessions, typically on
// startup. Sessions past the maximum age are skipped.
func (r *SessionRegistry) Restore(sessions []*model.Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	cutoff := r.now().Add(-r.cfg.MaxSessionAge)
	for _, s := range sessions {
		if !s.IsActive || s.CreatedAt.Before(cutoff) {
			continue
		}
		cp := s.Clone()
		r.sessions[cp.ID] = &sessionEntry{session: cp}
		r.pins[cp.Pin] = cp.ID
		restored++
	}
	return restored
}

// ExpireSessions stops sessions past the maximum age and releases their
// PINs. Returns the ids of the sessions it stopped.
func (r *SessionRegistry) ExpireSessions() []string {
	cutoff := r.now().Add(-r.cfg.MaxSessionAge)

	r.mu.RLock()
	var candidates []string
	for id, entry := range r.sessions {
		entry.mu.Lock()
		if entry.session.IsActive && entry.session.CreatedAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
		entry.mu.Unlock()
	}
	r.mu.RUnlock()

	var stopped []string
	for _, id := range candidates {
		if err := r.StopSession(id); err == nil {
			stopped = append(stopped, id)
		}
	}
	return stopped
}

// ActiveSessionIDs lists sessions still marked active.
func (r *SessionRegistry) ActiveSessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pins))
	for _, id := range r.pins {
		ids = append(ids, id)
	}
	return ids
}

// entry returns the live entry for a session id, or nil.
func (r *SessionRegistry) entry(sessionID string) *sessionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// update runs fn on the session under its lock and snapshots the result to
// the sink once the lock is released. This is the per-session exclusivity
// guarantee every mutation goes through.
func (r *SessionRegistry) update(sessionID string, fn func(*model.Session) error) error {
	entry := r.entry(sessionID)
	if entry == nil {
		return reject(CodeSessionNotFound, "session not found")
	}

	entry.mu.Lock()
	err := fn(entry.session)
	var snap *model.Session
	if err == nil {
		snap = entry.session.Clone()
	}
	entry.mu.Unlock()

	if snap != nil {
		r.snapshot(snap)
	}
	return err
}

// markSeen refreshes the player's last-seen stamp. Callers hold the session
// lock via update.
func markSeen(s *model.Session, playerID string, now time.Time) {
	if p := s.Player(playerID); p != nil {
		p.LastSeenAt = now
	}
}

func (r *SessionRegistry) snapshot(session *model.Session) {
	if r.sink != nil {
		r.sink.Enqueue(session)
	}
}

// generatePin draws fresh 6-digit PINs until one does not collide with an
// active session. Caller holds r.mu.
func (r *SessionRegistry) generatePin() (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, 6)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		pin := make([]byte, 6)
		for i := range pin {
			pin[i] = '0' + b[i]%10
		}
		pinStr := string(pin)
		if _, taken := r.pins[pinStr]; !taken {
			return pinStr, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique session pin")
}
