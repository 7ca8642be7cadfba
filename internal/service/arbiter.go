package service

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
)

// BuzzArbiter resolves the buzz race per session. The check-lock-then-set-
// winner step runs under the registry's per-session lock, so exactly one
// concurrent buzz can transition a session from unlocked to locked.
type BuzzArbiter struct {
	registry  *SessionRegistry
	limiter   *RateLimiter
	validator *SessionValidator
	cfg       config.SessionConfig
	bcast     Broadcaster
	now       func() time.Time
}

// NewBuzzArbiter composes the race state machine from its collaborators.
func NewBuzzArbiter(registry *SessionRegistry, limiter *RateLimiter, validator *SessionValidator, cfg config.SessionConfig) *BuzzArbiter {
	return &BuzzArbiter{
		registry:  registry,
		limiter:   limiter,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (a *BuzzArbiter) SetBroadcaster(b Broadcaster) {
	a.bcast = b
}

// Buzz is the race-resolution entry point. The first valid, unthrottled,
// unflagged caller wins; every later caller in the same lock cycle loses.
// There is no FIFO fairness across players: timestamps reject staleness and
// abuse, they do not order the race.
func (a *BuzzArbiter) Buzz(sessionID, playerID string, clientTimestamp time.Time) (*model.BuzzEvent, error) {
	envelope := ActionContext{
		SessionID: sessionID,
		PlayerID:  playerID,
		Action:    "buzz",
		Timestamp: clientTimestamp,
	}
	if res := a.validator.ValidateActionContext(envelope); !res.Valid {
		return nil, res.Err()
	}

	var winner *model.BuzzEvent
	err := a.registry.update(sessionID, func(s *model.Session) error {
		if res := a.validator.ValidatePlayer(s, playerID); !res.Valid {
			return res.Err()
		}

		limit := a.limiter.CheckLimit(playerID)
		if !limit.Allowed {
			return &RejectionError{
				Code:       CodeRateLimited,
				Message:    "buzzing too fast, wait before trying again",
				RetryAfter: limit.RetryAfter,
			}
		}

		if res := a.validator.DetectSuspiciousActivity(s, playerID); !res.Valid {
			return res.Err()
		}

		if s.BuzzState.IsLocked {
			return reject(CodeBuzzLocked, "another player already buzzed in")
		}

		ev := &model.BuzzEvent{
			ID:        "b_" + uuid.New().String()[:8],
			SessionID: sessionID,
			PlayerID:  playerID,
			Timestamp: clientTimestamp,
		}
		if res := a.validator.ValidateBuzzEvent(s, playerID, ev); !res.Valid {
			return res.Err()
		}

		now := a.now()
		expires := now.Add(a.cfg.LockDuration)
		ev.IsWinner = true
		s.BuzzState.IsLocked = true
		s.BuzzState.WinnerID = playerID
		s.BuzzState.LockExpiresAt = &expires
		s.BuzzState.Events = append(s.BuzzState.Events, ev)
		markSeen(s, playerID, now)

		winner = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.broadcastState(sessionID, "buzz_locked")
	return winner, nil
}

// LockBuzz force-assigns a winner without running the race validation. Used
// by a host to manually award first-response.
func (a *BuzzArbiter) LockBuzz(sessionID, playerID string, duration time.Duration) error {
	if duration <= 0 {
		duration = a.cfg.LockDuration
	}
	err := a.registry.update(sessionID, func(s *model.Session) error {
		if s.Player(playerID) == nil {
			return reject(CodePlayerNotFound, "player is not a member of this session")
		}
		expires := a.now().Add(duration)
		s.BuzzState.IsLocked = true
		s.BuzzState.WinnerID = playerID
		s.BuzzState.LockExpiresAt = &expires
		return nil
	})
	if err != nil {
		return err
	}
	a.broadcastState(sessionID, "buzz_locked")
	return nil
}

// UnlockBuzz releases the lock but keeps the winner and the event log, so
// the next question can open without erasing who won the last one.
func (a *BuzzArbiter) UnlockBuzz(sessionID string) error {
	err := a.registry.update(sessionID, func(s *model.Session) error {
		s.BuzzState.IsLocked = false
		s.BuzzState.LockExpiresAt = nil
		return nil
	})
	if err != nil {
		return err
	}
	a.broadcastState(sessionID, "buzz_unlocked")
	return nil
}

// ResetBuzz clears the lock, the winner, and the event log. Used when moving
// to a new question. Idempotent.
func (a *BuzzArbiter) ResetBuzz(sessionID string) error {
	err := a.registry.update(sessionID, func(s *model.Session) error {
		s.BuzzState = model.BuzzState{Events: []*model.BuzzEvent{}}
		return nil
	})
	if err != nil {
		return err
	}
	a.broadcastState(sessionID, "buzz_reset")
	return nil
}

// GetBuzzState returns the session's race state. A lock past its expiry is
// released on read rather than reported stale.
func (a *BuzzArbiter) GetBuzzState(sessionID string) (*model.BuzzState, error) {
	var state *model.BuzzState
	expired := false
	err := a.registry.update(sessionID, func(s *model.Session) error {
		if a.lockExpired(&s.BuzzState) {
			s.BuzzState.IsLocked = false
			s.BuzzState.LockExpiresAt = nil
			expired = true
		}
		state = s.BuzzState.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		a.broadcastState(sessionID, "buzz_unlocked")
	}
	return state, nil
}

// GetBuzzWinner returns the winning player of the current cycle, or nil.
func (a *BuzzArbiter) GetBuzzWinner(sessionID string) (*model.Player, error) {
	session, err := a.registry.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.BuzzState.WinnerID == "" {
		return nil, nil
	}
	return session.Player(session.BuzzState.WinnerID), nil
}

// StartSweep releases stale locks and prunes old events on the configured
// interval until stop is closed.
func (a *BuzzArbiter) StartSweep(stop <-chan struct{}) {
	interval := a.cfg.SweepInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.sweep()
			case <-stop:
				return
			}
		}
	}()
}

func (a *BuzzArbiter) sweep() {
	for _, id := range a.registry.ActiveSessionIDs() {
		unlocked := false
		err := a.registry.update(id, func(s *model.Session) error {
			if a.lockExpired(&s.BuzzState) {
				s.BuzzState.IsLocked = false
				s.BuzzState.LockExpiresAt = nil
				unlocked = true
			}

			cutoff := a.now().Add(-a.cfg.EventRetention)
			kept := s.BuzzState.Events[:0]
			for _, ev := range s.BuzzState.Events {
				if ev.Timestamp.After(cutoff) {
					kept = append(kept, ev)
				}
			}
			s.BuzzState.Events = kept
			return nil
		})
		if err != nil {
			log.Printf("buzz sweep: session %s: %v", id, err)
			continue
		}
		if unlocked {
			a.broadcastState(id, "buzz_unlocked")
		}
	}
}

func (a *BuzzArbiter) lockExpired(b *model.BuzzState) bool {
	return b.IsLocked && b.LockExpiresAt != nil && a.now().After(*b.LockExpiresAt)
}

func (a *BuzzArbiter) broadcastState(sessionID, msgType string) {
	if a.bcast == nil {
		return
	}
	session, err := a.registry.GetSession(sessionID)
	if err != nil {
		return
	}
	state := session.BuzzState
	a.bcast.BroadcastToHost(sessionID, msgType, state)
	a.bcast.BroadcastToAllPlayers(sessionID, msgType, state)
}
