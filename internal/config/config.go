package config

import (
	"os"
	"strconv"
	"time"
)

// SessionConfig holds the timing and abuse thresholds for live sessions.
type SessionConfig struct {
	// MaxSessionAge is how old a session may grow before it is treated as
	// expired even if still marked active.
	MaxSessionAge time.Duration

	// MaxPlayerInactivity bounds how long a player may go without an
	// accepted action before being treated as gone.
	MaxPlayerInactivity time.Duration

	// MaxTimestampDrift bounds |server now - client timestamp| on a buzz.
	MaxTimestampDrift time.Duration

	// MaxActionAge bounds how stale a generic action envelope may be.
	MaxActionAge time.Duration

	// MaxBuzzInterval is the minimum spacing between two buzz events from
	// the same player before the second is rejected outright.
	MaxBuzzInterval time.Duration

	// MinBuzzInterval is the humanly-plausible floor; consecutive events
	// closer than this flag the player as suspicious.
	MinBuzzInterval time.Duration

	// SuspiciousEventLimit is the number of events in SuspiciousWindow
	// above which a player is flagged.
	SuspiciousEventLimit int
	SuspiciousWindow     time.Duration

	// EventRetention is how long buzz events stay in the log before the
	// sweep prunes them.
	EventRetention time.Duration

	// LockDuration is how long a won lock holds before going stale.
	LockDuration time.Duration

	// SweepInterval is how often the arbiter releases stale locks.
	SweepInterval time.Duration
}

// RateLimitConfig holds the per-participant buzz throttle policy.
type RateLimitConfig struct {
	MaxRequests     int
	Window          time.Duration
	BlockDuration   time.Duration
	CleanupInterval time.Duration
}

// Config holds all service configuration.
type Config struct {
	Port     string
	MongoURI string
	MongoDB  string
	RedisURI string

	Session   SessionConfig
	RateLimit RateLimitConfig
}

// DefaultSessionConfig returns the stock session policy.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxSessionAge:        24 * time.Hour,
		MaxPlayerInactivity:  30 * time.Minute,
		MaxTimestampDrift:    5 * time.Second,
		MaxActionAge:         10 * time.Second,
		MaxBuzzInterval:      time.Second,
		MinBuzzInterval:      100 * time.Millisecond,
		SuspiciousEventLimit: 10,
		SuspiciousWindow:     time.Minute,
		EventRetention:       time.Hour,
		LockDuration:         3 * time.Second,
		SweepInterval:        250 * time.Millisecond,
	}
}

// DefaultRateLimitConfig returns the stock buzz throttle: one buzz per
// second, with a five second timeout on violation.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:     1,
		Window:          time.Second,
		BlockDuration:   5 * time.Second,
		CleanupInterval: time.Minute,
	}
}

// Load builds the configuration from defaults and environment overrides.
func Load() *Config {
	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		MongoURI:  getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getEnvOrDefault("MONGO_DB", "buzzdb"),
		RedisURI:  getEnvOrDefault("REDIS_URI", "localhost:6379"),
		Session:   DefaultSessionConfig(),
		RateLimit: DefaultRateLimitConfig(),
	}

	cfg.Session.MaxSessionAge = getDurationOrDefault("MAX_SESSION_AGE", cfg.Session.MaxSessionAge)
	cfg.Session.MaxPlayerInactivity = getDurationOrDefault("MAX_PLAYER_INACTIVITY", cfg.Session.MaxPlayerInactivity)
	cfg.Session.LockDuration = getDurationOrDefault("BUZZ_LOCK_DURATION", cfg.Session.LockDuration)
	cfg.Session.SweepInterval = getDurationOrDefault("BUZZ_SWEEP_INTERVAL", cfg.Session.SweepInterval)

	cfg.RateLimit.MaxRequests = getIntOrDefault("BUZZ_RATE_MAX", cfg.RateLimit.MaxRequests)
	cfg.RateLimit.Window = getDurationOrDefault("BUZZ_RATE_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.BlockDuration = getDurationOrDefault("BUZZ_RATE_BLOCK", cfg.RateLimit.BlockDuration)

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
