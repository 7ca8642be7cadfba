package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/Dimagious/jeopardy-game-sub000/internal/service"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/rest/handler"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/rest/middleware"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService *service.AuthService
	Registry    *service.SessionRegistry
	Arbiter     *service.BuzzArbiter
	WSHub       *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	sessionHandler := handler.NewSessionHandler(c.Registry, c.AuthService)
	buzzHandler := handler.NewBuzzHandler(c.Arbiter)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/sessions/join", sessionHandler.Join).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/sessions/{id}/host", wsHandler.HostWS).Methods("GET")
	v1.HandleFunc("/ws/sessions/{id}/player", wsHandler.PlayerWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Host routes (require host auth)
	hostRoutes := v1.NewRoute().Subrouter()
	hostRoutes.Use(authMW.RequireHost)

	hostRoutes.HandleFunc("/sessions", sessionHandler.Create).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/stop", sessionHandler.Stop).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/players/unassigned", sessionHandler.Unassigned).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/players/{playerId}/team", sessionHandler.AssignTeam).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/players/{playerId}/team", sessionHandler.UnassignTeam).Methods("DELETE", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/teams/{teamId}/players", sessionHandler.Teams).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/buzz/lock", buzzHandler.Lock).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/buzz/unlock", buzzHandler.Unlock).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/buzz/reset", buzzHandler.Reset).Methods("POST", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/buzz", buzzHandler.State).Methods("GET", "OPTIONS")
	hostRoutes.HandleFunc("/sessions/{id}/buzz/winner", buzzHandler.Winner).Methods("GET", "OPTIONS")

	// Player routes (require player auth)
	playerRoutes := v1.NewRoute().Subrouter()
	playerRoutes.Use(authMW.RequirePlayer)

	playerRoutes.HandleFunc("/sessions/{id}/buzz", buzzHandler.Buzz).Methods("POST", "OPTIONS")
	playerRoutes.HandleFunc("/sessions/{id}/leave", sessionHandler.Leave).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
