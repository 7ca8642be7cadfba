package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Dimagious/jeopardy-game-sub000/internal/cache"
	"github.com/Dimagious/jeopardy-game-sub000/internal/config"
	"github.com/Dimagious/jeopardy-game-sub000/internal/repository"
	"github.com/Dimagious/jeopardy-game-sub000/internal/service"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/rest"
	"github.com/Dimagious/jeopardy-game-sub000/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	cfg := config.Load()
	log.Printf("Buzz policy: %d req / %s window, %s block, %s lock",
		cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.BlockDuration, cfg.Session.LockDuration)

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	redisAddr := cfg.RedisURI
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize persistence
	sessionRepo := repository.NewSessionRepo(db)
	sessionCache := cache.NewSessionCache(rdb)
	pinIndex := cache.NewPinIndex(rdb)
	snapshots := service.NewSnapshotWriter(sessionRepo, sessionCache, pinIndex)
	defer snapshots.Close()

	// Initialize services
	authSvc := service.NewAuthService()
	validator := service.NewSessionValidator(cfg.Session)
	limiter := service.NewRateLimiter(cfg.RateLimit)
	registry := service.NewSessionRegistry(cfg.Session, validator, snapshots)
	arbiter := service.NewBuzzArbiter(registry, limiter, validator, cfg.Session)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	registry.SetBroadcaster(wsHub)
	arbiter.SetBroadcaster(wsHub)

	// Recover live sessions from the last run
	if persisted, err := sessionRepo.ListActive(ctx); err != nil {
		log.Printf("Warning: failed to list persisted sessions: %v", err)
	} else if n := registry.Restore(persisted); n > 0 {
		log.Printf("Restored %d active sessions", n)
	}

	// Background jobs
	stop := make(chan struct{})
	defer close(stop)
	arbiter.StartSweep(stop)
	limiter.StartCleanup(stop)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if expired := registry.ExpireSessions(); len(expired) > 0 {
					log.Printf("Expired %d sessions", len(expired))
				}
			case <-stop:
				return
			}
		}
	}()

	// Create router with container
	container := &rest.Container{
		AuthService: authSvc,
		Registry:    registry,
		Arbiter:     arbiter,
		WSHub:       wsHub,
	}

	router := rest.NewRouter(container)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST /v1/sessions")
		log.Println("  POST /v1/sessions/join")
		log.Println("  POST /v1/sessions/{id}/buzz")
		log.Println("  POST /v1/sessions/{id}/buzz/{lock|unlock|reset}")
		log.Println("  GET  /v1/sessions/{id}/buzz")
		log.Println("  WS   /v1/ws/sessions/{id}/host")
		log.Println("  WS   /v1/ws/sessions/{id}/player")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
