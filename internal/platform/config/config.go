package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration so main stays lean.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	JWTSigningKey string

	RateLimit RateLimit
	Retention Retention
}

// RateLimit caps document submissions per subject over rolling windows.
type RateLimit struct {
	HourlyLimit int
	DailyLimit  int
}

// Retention drives the document retention/deletion lifecycle.
type Retention struct {
	RetentionDays   int
	WarningLeadDays int
	SweepInterval   time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	addr := os.Getenv("CUSTODIA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: jwtSigningKey,
		RateLimit: RateLimit{
			HourlyLimit: envInt("SUBMIT_HOURLY_LIMIT", 3),
			DailyLimit:  envInt("SUBMIT_DAILY_LIMIT", 10),
		},
		Retention: Retention{
			RetentionDays:   envInt("RETENTION_DAYS", 90),
			WarningLeadDays: envInt("RETENTION_WARNING_LEAD_DAYS", 7),
			SweepInterval:   envDuration("RETENTION_SWEEP_INTERVAL", 24*time.Hour),
		},
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
