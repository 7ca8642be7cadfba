package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
	"github.com/Dimagious/jeopardy-game-sub000/internal/service"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/rest/middleware"
)

// SessionHandler handles session lifecycle and membership endpoints
type SessionHandler struct {
	registry *service.SessionRegistry
	authSvc  *service.AuthService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *service.SessionRegistry, authSvc *service.AuthService) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		authSvc:  authSvc,
	}
}

// CreateSessionRequest is the request body for creating a session
type CreateSessionRequest struct {
	GameID     string `json:"gameId"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.registry.CreateSession(req.GameID, req.MaxPlayers)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Get handles GET /v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session, err := h.registry.GetSession(id)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Stop handles POST /v1/sessions/{id}/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.registry.StopSession(id); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// JoinRequest is the request body for joining a session by PIN
type JoinRequest struct {
	Pin  string `json:"pin"`
	Name string `json:"name"`
}

// Join handles POST /v1/sessions/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	session, err := h.registry.GetSessionByPin(req.Pin)
	if err != nil {
		writeRejection(w, err)
		return
	}

	player, err := h.registry.AddPlayer(session.ID, req.Name)
	if err != nil {
		writeRejection(w, err)
		return
	}

	token, err := h.authSvc.GeneratePlayerToken(session.ID, player.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, &model.JoinResponse{
		Player:    player,
		SessionID: session.ID,
		Token:     token,
	})
}

// Leave handles POST /v1/sessions/{id}/leave
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	playerID := middleware.GetPlayerID(r.Context())

	if middleware.GetSessionID(r.Context()) != id {
		writeError(w, http.StatusForbidden, "token not valid for this session")
		return
	}

	if err := h.registry.RemovePlayer(id, playerID); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// AssignTeamRequest is the request body for a team assignment
type AssignTeamRequest struct {
	TeamID string `json:"teamId"`
}

// AssignTeam handles POST /v1/sessions/{id}/players/{playerId}/team
func (h *SessionHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req AssignTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.registry.AssignPlayerToTeam(vars["id"], vars["playerId"], req.TeamID); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"teamId": req.TeamID})
}

// UnassignTeam handles DELETE /v1/sessions/{id}/players/{playerId}/team
func (h *SessionHandler) UnassignTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.registry.RemovePlayerFromTeam(vars["id"], vars["playerId"]); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"teamId": ""})
}

// Teams handles GET /v1/sessions/{id}/teams/{teamId}/players
func (h *SessionHandler) Teams(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	players, err := h.registry.PlayersByTeam(vars["id"], vars["teamId"])
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"players": players})
}

// Unassigned handles GET /v1/sessions/{id}/players/unassigned
func (h *SessionHandler) Unassigned(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	players, err := h.registry.UnassignedPlayers(id)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"players": players})
}
