package model

import "time"

// BuzzEvent is an immutable record of one buzz attempt.
type BuzzEvent struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	SessionID string    `json:"sessionId" bson:"sessionId"`
	PlayerID  string    `json:"playerId" bson:"playerId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	IsWinner  bool      `json:"isWinner" bson:"isWinner"`
}

// BuzzState is the race status for the currently open question.
//
// At most one winner may exist while IsLocked is true. LockExpiresAt is
// advisory: it is enforced lazily on read and by the arbiter's sweep, the
// lock never releases itself.
type BuzzState struct {
	IsLocked      bool         `json:"isLocked" bson:"isLocked"`
	WinnerID      string       `json:"winnerId,omitempty" bson:"winnerId,omitempty"`
	LockExpiresAt *time.Time   `json:"lockExpiresAt,omitempty" bson:"lockExpiresAt,omitempty"`
	Events        []*BuzzEvent `json:"events" bson:"events"`
}

// EventsByPlayer returns the player's buzz attempts in log order.
func (b *BuzzState) EventsByPlayer(playerID string) []*BuzzEvent {
	var out []*BuzzEvent
	for _, ev := range b.Events {
		if ev.PlayerID == playerID {
			out = append(out, ev)
		}
	}
	return out
}

// Clone deep-copies the state, events included.
func (b *BuzzState) Clone() *BuzzState {
	cp := *b
	if b.LockExpiresAt != nil {
		t := *b.LockExpiresAt
		cp.LockExpiresAt = &t
	}
	cp.Events = make([]*BuzzEvent, len(b.Events))
	for i, ev := range b.Events {
		ec := *ev
		cp.Events[i] = &ec
	}
	return &cp
}
