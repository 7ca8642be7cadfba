package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dimagious/jeopardy-game-sub000/internal/model"
	"github.com/Dimagious/jeopardy-game-sub000/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRejection maps a service error onto an HTTP status, carrying the
// rejection code and cool-down when present.
func writeRejection(w http.ResponseWriter, err error) {
	var re *service.RejectionError
	if !errors.As(err, &re) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := map[string]interface{}{
		"error": re.Message,
		"code":  re.Code,
	}
	if re.RetryAfter > 0 {
		body["retryAfterMs"] = re.RetryAfter.Milliseconds()
	}
	writeJSON(w, statusForCode(re.Code), body)
}

func statusForCode(code service.RejectCode) int {
	switch code {
	case service.CodeSessionNotFound, service.CodePlayerNotFound:
		return http.StatusNotFound
	case service.CodeSessionInactive, service.CodeSessionExpired,
		service.CodeSessionFull, service.CodeBuzzLocked:
		return http.StatusConflict
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	case service.CodeSuspiciousActivity, service.CodeSuspiciousPattern:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
