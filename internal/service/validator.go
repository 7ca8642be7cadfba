package service

import (
	"fmt"
	"time"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
)

// SessionValidator checks session/participant/event triples against the
// integrity and anti-abuse rules. All methods are pure: no mutation, no I/O.
type SessionValidator struct {
	cfg config.SessionConfig
	now func() time.Time
}

// Result is the outcome of one validation rule.
type Result struct {
	Valid   bool       `json:"valid"`
	Code    RejectCode `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(code RejectCode, message string) Result {
	return Result{Code: code, Message: message}
}

// Err converts a failed result into a rejection error, or nil when valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return reject(r.Code, r.Message)
}

// ActionContext is the generic envelope for any session-scoped action.
type ActionContext struct {
	SessionID string    `json:"sessionId"`
	PlayerID  string    `json:"playerId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

var allowedActions = map[string]bool{
	"buzz":        true,
	"join":        true,
	"leave":       true,
	"assign_team": true,
}

// NewSessionValidator creates a validator with the given thresholds.
func NewSessionValidator(cfg config.SessionConfig) *SessionValidator {
	return &SessionValidator{cfg: cfg, now: time.Now}
}

// ValidateSession checks that the session exists, is running, and has not
// outlived the configured maximum age.
func (v *SessionValidator) ValidateSession(session *model.Session) Result {
	if session == nil {
		return invalid(CodeSessionNotFound, "session not found")
	}
	if !session.IsActive {
		return invalid(CodeSessionInactive, "session has been stopped")
	}
	if v.now().Sub(session.CreatedAt) > v.cfg.MaxSessionAge {
		return invalid(CodeSessionExpired, "session is older than the maximum age")
	}
	return valid()
}

// ValidatePlayer chains ValidateSession and checks session membership and
// liveness. Inactivity is measured from the player's last accepted action,
// falling back to join time for players who never acted.
func (v *SessionValidator) ValidatePlayer(session *model.Session, playerID string) Result {
	if r := v.ValidateSession(session); !r.Valid {
		return r
	}
	player := session.Player(playerID)
	if player == nil {
		return invalid(CodePlayerNotFound, "player is not a member of this session")
	}
	if !player.IsActive {
		return invalid(CodePlayerInactive, "player has left the session")
	}
	lastSeen := player.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = player.JoinedAt
	}
	if v.now().Sub(lastSeen) > v.cfg.MaxPlayerInactivity {
		return invalid(CodePlayerInactiveTooLong, "player has been inactive too long")
	}
	return valid()
}

// ValidateBuzzEvent chains ValidatePlayer and checks the event against clock
// drift, per-player spacing, and the current lock.
func (v *SessionValidator) ValidateBuzzEvent(session *model.Session, playerID string, event *model.BuzzEvent) Result {
	if r := v.ValidatePlayer(session, playerID); !r.Valid {
		return r
	}

	drift := v.now().Sub(event.Timestamp)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.cfg.MaxTimestampDrift {
		return invalid(CodeInvalidTimestamp, "event timestamp is too far from server time")
	}

	for _, prev := range session.BuzzState.EventsByPlayer(playerID) {
		gap := event.Timestamp.Sub(prev.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap < v.cfg.MaxBuzzInterval {
			return invalid(CodeBuzzTooFrequent, "player buzzed again too soon")
		}
	}

	if session.BuzzState.IsLocked {
		return invalid(CodeBuzzLocked, "another player already buzzed in")
	}
	return valid()
}

// ValidateActionContext checks the generic envelope for any session-scoped
// action.
func (v *SessionValidator) ValidateActionContext(ctx ActionContext) Result {
	if ctx.SessionID == "" || ctx.PlayerID == "" {
		return invalid(CodeMissingFields, "session and player ids are required")
	}
	if v.now().Sub(ctx.Timestamp) > v.cfg.MaxActionAge {
		return invalid(CodeTimestampTooOld, "action timestamp is too old")
	}
	if !allowedActions[ctx.Action] {
		return invalid(CodeInvalidAction, fmt.Sprintf("unknown action %q", ctx.Action))
	}
	return valid()
}

// DetectSuspiciousActivity flags event patterns inconsistent with plausible
// human input timing. A flag is a signal for consumers to ban or mute, not a
// hard rejection of the session itself.
func (v *SessionValidator) DetectSuspiciousActivity(session *model.Session, playerID string) Result {
	if session == nil {
		return invalid(CodeSessionNotFound, "session not found")
	}
	events := session.BuzzState.EventsByPlayer(playerID)

	cutoff := v.now().Add(-v.cfg.SuspiciousWindow)
	recent := 0
	for _, ev := range events {
		if ev.Timestamp.After(cutoff) {
			recent++
		}
	}
	if recent > v.cfg.SuspiciousEventLimit {
		return invalid(CodeSuspiciousActivity, "too many buzz attempts in a short period")
	}

	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Sub(events[i-1].Timestamp) < v.cfg.MinBuzzInterval {
			return invalid(CodeSuspiciousPattern, "buzz attempts faster than humanly plausible")
		}
	}
	return valid()
}

// CleanupExpiredEvents returns a copy of the session with buzz events older
// than the retention window pruned. The input session is not touched.
func (v *SessionValidator) CleanupExpiredEvents(session *model.Session) *model.Session {
	cp := session.Clone()
	cutoff := v.now().Add(-v.cfg.EventRetention)
	kept := make([]*model.BuzzEvent, 0, len(cp.BuzzState.Events))
	for _, ev := range cp.BuzzState.Events {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	cp.BuzzState.Events = kept
	return cp
}

// ValidationStats is a diagnostic aggregate over one session.
type ValidationStats struct {
	TotalEvents   int `json:"totalEvents"`
	RecentEvents  int `json:"recentEvents"`
	StaleEvents   int `json:"staleEvents"`
	ActivePlayers int `json:"activePlayers"`
}

// Stats summarizes the session's event log and membership.
func (v *SessionValidator) Stats(session *model.Session) ValidationStats {
	now := v.now()
	stats := ValidationStats{
		TotalEvents:   len(session.BuzzState.Events),
		ActivePlayers: session.ActivePlayerCount(),
	}
	recentCutoff := now.Add(-5 * time.Minute)
	staleCutoff := now.Add(-10 * time.Second)
	for _, ev := range session.BuzzState.Events {
		if ev.Timestamp.After(recentCutoff) {
			stats.RecentEvents++
		}
		if ev.Timestamp.Before(staleCutoff) {
			stats.StaleEvents++
		}
	}
	return stats
}
