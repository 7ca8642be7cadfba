package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Dimagious/jeopardy-game-sub000/internal/service"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/rest/middleware"
)

// BuzzHandler handles the buzz race endpoints
type BuzzHandler struct {
	arbiter *service.BuzzArbiter
}

// NewBuzzHandler creates a new buzz handler
func NewBuzzHandler(arbiter *service.BuzzArbiter) *BuzzHandler {
	return &BuzzHandler{arbiter: arbiter}
}

// BuzzRequest is the request body for a buzz attempt
type BuzzRequest struct {
	// TimestampMs is the client clock in unix milliseconds; used only for
	// staleness and abuse rejection, never for race ordering.
	TimestampMs int64 `json:"timestampMs"`
}

// Buzz handles POST /v1/sessions/{id}/buzz
func (h *BuzzHandler) Buzz(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	playerID := middleware.GetPlayerID(r.Context())

	if middleware.GetSessionID(r.Context()) != id {
		writeError(w, http.StatusForbidden, "token not valid for this session")
		return
	}

	var req BuzzRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	clientTS := time.Now()
	if req.TimestampMs > 0 {
		clientTS = time.UnixMilli(req.TimestampMs)
	}

	event, err := h.arbiter.Buzz(id, playerID, clientTS)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// LockRequest is the request body for a manual lock
type LockRequest struct {
	PlayerID   string `json:"playerId"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Lock handles POST /v1/sessions/{id}/buzz/lock
func (h *BuzzHandler) Lock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "playerId is required")
		return
	}

	if err := h.arbiter.LockBuzz(id, req.PlayerID, time.Duration(req.DurationMs)*time.Millisecond); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "locked"})
}

// Unlock handles POST /v1/sessions/{id}/buzz/unlock
func (h *BuzzHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.arbiter.UnlockBuzz(id); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// Reset handles POST /v1/sessions/{id}/buzz/reset
func (h *BuzzHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.arbiter.ResetBuzz(id); err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// State handles GET /v1/sessions/{id}/buzz
func (h *BuzzHandler) State(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	state, err := h.arbiter.GetBuzzState(id)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// Winner handles GET /v1/sessions/{id}/buzz/winner
func (h *BuzzHandler) Winner(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	winner, err := h.arbiter.GetBuzzWinner(id)
	if err != nil {
		writeRejection(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"winner": winner})
}
