package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration sourced from the environment.
type Server struct {
	Addr          string
	JWTSigningKey string
	AdminKeyHash  string
	Redis         Redis
	PostgresDSN   string
	Audit         Audit
}

// Redis holds connection settings for the optional Redis-backed stores.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit holds the thresholds driving automatic alerting.
type Audit struct {
	MaxOpsPerHour     int
	BusinessHoursFrom string
	BusinessHoursTo   string
	HighAmount        float64
	FailureThreshold  int
	Retention         time.Duration
	RetentionInterval time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CHRONOS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		AdminKeyHash:  os.Getenv("CHRONOS_ADMIN_KEY_HASH"),
		Redis: Redis{
			URL:          os.Getenv("CHRONOS_REDIS_URL"),
			PoolSize:     envInt("CHRONOS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CHRONOS_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		PostgresDSN: os.Getenv("CHRONOS_POSTGRES_DSN"),
		Audit: Audit{
			MaxOpsPerHour:     envInt("CHRONOS_AUDIT_MAX_OPS_PER_HOUR", 100),
			BusinessHoursFrom: "07:00",
			BusinessHoursTo:   "23:00",
			HighAmount:        envFloat("CHRONOS_AUDIT_HIGH_AMOUNT", 50000),
			FailureThreshold:  envInt("CHRONOS_AUDIT_FAILURE_THRESHOLD", 5),
			Retention:         90 * 24 * time.Hour,
			RetentionInterval: time.Hour,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}
