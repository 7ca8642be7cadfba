package model

import "time"

// Session is one live hosted instance of a game, joinable by its PIN.
type Session struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	GameID     string     `json:"gameId" bson:"gameId"`
	Pin        string     `json:"pin" bson:"pin"`
	IsActive   bool       `json:"isActive" bson:"isActive"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	StoppedAt  *time.Time `json:"stoppedAt,omitempty" bson:"stoppedAt,omitempty"`
	MaxPlayers int        `json:"maxPlayers,omitempty" bson:"maxPlayers,omitempty"` // 0 means unbounded
	Players    []*Player  `json:"players" bson:"players"`
	BuzzState  BuzzState  `json:"buzzState" bson:"buzzState"`
}

// Player returns the member with the given id, soft-removed members included.
func (s *Session) Player(playerID string) *Player {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// ActivePlayerCount counts members that have not left.
func (s *Session) ActivePlayerCount() int {
	n := 0
	for _, p := range s.Players {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Clone deep-copies the session so state can be read outside the registry's
// lock without aliasing its players or event log.
func (s *Session) Clone() *Session {
	cp := *s
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		cp.StoppedAt = &t
	}
	cp.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		pc := *p
		cp.Players[i] = &pc
	}
	cp.BuzzState = *s.BuzzState.Clone()
	return &cp
}
