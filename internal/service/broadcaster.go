package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToHost(sessionID string, msgType string, payload interface{})
	BroadcastToPlayer(sessionID, playerID string, msgType string, payload interface{})
	BroadcastToAllPlayers(sessionID string, msgType string, payload interface{})
	DisconnectSession(sessionID string)
}
