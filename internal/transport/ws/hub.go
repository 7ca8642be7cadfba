package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Session lifecycle message types
const (
	MsgPlayerJoined   MessageType = "player_joined"
	MsgPlayerLeft     MessageType = "player_left"
	MsgTeamAssigned   MessageType = "team_assigned"
	MsgSessionStopped MessageType = "session_stopped"
)

// Buzz race message types
const (
	MsgBuzzLocked   MessageType = "buzz_locked"
	MsgBuzzUnlocked MessageType = "buzz_unlocked"
	MsgBuzzReset    MessageType = "buzz_reset"
	MsgError        MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections for live sessions
type Hub struct {
	// Session -> connections
	hostConns   map[string]*Connection
	playerConns map[string]map[string]*Connection // sessionID -> playerID -> conn

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
}

// Connection represents a WebSocket connection
type Connection struct {
	SessionID string
	PlayerID  string // Empty for host connections
	IsHost    bool
	Send      chan []byte
	Hub       *Hub
}

// BroadcastMessage is a message to broadcast
type BroadcastMessage struct {
	SessionID  string
	ToHost     bool
	ToPlayer   string // Empty means all players, specific ID means one player
	Disconnect bool   // Drop every connection for the session instead of sending
	Message    *Message
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		hostConns:   make(map[string]*Connection),
		playerConns: make(map[string]map[string]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *BroadcastMessage, 256),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if conn.IsHost {
				h.hostConns[conn.SessionID] = conn
				log.Printf("Host connected to session %s", conn.SessionID)
			} else {
				if h.playerConns[conn.SessionID] == nil {
					h.playerConns[conn.SessionID] = make(map[string]*Connection)
				}
				h.playerConns[conn.SessionID][conn.PlayerID] = conn
				log.Printf("Player %s connected to session %s", conn.PlayerID, conn.SessionID)
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conn.IsHost {
				if existing, ok := h.hostConns[conn.SessionID]; ok && existing == conn {
					delete(h.hostConns, conn.SessionID)
					close(conn.Send)
					log.Printf("Host disconnected from session %s", conn.SessionID)
				}
			} else {
				if players, ok := h.playerConns[conn.SessionID]; ok {
					if existing, ok := players[conn.PlayerID]; ok && existing == conn {
						delete(players, conn.PlayerID)
						close(conn.Send)
						log.Printf("Player %s disconnected from session %s", conn.PlayerID, conn.SessionID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			if msg.Disconnect {
				h.dropSession(msg.SessionID)
				continue
			}

			h.mu.RLock()
			data, _ := json.Marshal(msg.Message)

			if msg.ToHost {
				if conn, ok := h.hostConns[msg.SessionID]; ok {
					select {
					case conn.Send <- data:
					default:
						// Drop message if buffer full
					}
				}
			} else if msg.ToPlayer != "" {
				// Send to specific player
				if players, ok := h.playerConns[msg.SessionID]; ok {
					if conn, ok := players[msg.ToPlayer]; ok {
						select {
						case conn.Send <- data:
						default:
						}
					}
				}
			} else {
				// Broadcast to all players
				if players, ok := h.playerConns[msg.SessionID]; ok {
					for _, conn := range players {
						select {
						case conn.Send <- data:
						default:
						}
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BroadcastToHost sends a message to the session host (implements service.Broadcaster)
func (h *Hub) BroadcastToHost(sessionID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		ToHost:    true,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToPlayer sends a message to a specific player (implements service.Broadcaster)
func (h *Hub) BroadcastToPlayer(sessionID, playerID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		ToPlayer:  playerID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// BroadcastToAllPlayers sends a message to all players in a session (implements service.Broadcaster)
func (h *Hub) BroadcastToAllPlayers(sessionID string, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.broadcast <- &BroadcastMessage{
		SessionID: sessionID,
		ToPlayer:  "", // Empty means all
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}
}

// DisconnectSession drops every connection bound to the session (implements
// service.Broadcaster). Queued through the broadcast channel so frames sent
// before the disconnect still go out.
func (h *Hub) DisconnectSession(sessionID string) {
	h.broadcast <- &BroadcastMessage{
		SessionID:  sessionID,
		Disconnect: true,
	}
}

func (h *Hub) dropSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.hostConns[sessionID]; ok {
		delete(h.hostConns, sessionID)
		close(conn.Send)
	}
	if players, ok := h.playerConns[sessionID]; ok {
		for id, conn := range players {
			delete(players, id)
			close(conn.Send)
		}
		delete(h.playerConns, sessionID)
	}
	log.Printf("Disconnected all clients from session %s", sessionID)
}
