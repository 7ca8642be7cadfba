package model

import "time"

// Player represents one participant device inside a session.
type Player struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	SessionID  string    `json:"sessionId" bson:"sessionId"`
	Name       string    `json:"name" bson:"name"`
	TeamID     string    `json:"teamId,omitempty" bson:"teamId,omitempty"` // empty means unassigned
	JoinedAt   time.Time `json:"joinedAt" bson:"joinedAt"`
	LastSeenAt time.Time `json:"lastSeenAt" bson:"lastSeenAt"`
	IsActive   bool      `json:"isActive" bson:"isActive"`
}

// JoinResponse is returned when a player joins a session by PIN.
type JoinResponse struct {
	Player    *Player `json:"player"`
	SessionID string  `json:"sessionId"`
	Token     string  `json:"token"`
}
