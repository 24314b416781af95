package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// Ringing phase
	CallRingTimeout = 25 * time.Second

	// Presence store writes are best-effort: a fixed number of attempts with a
	// fixed pause between them, then the update is abandoned with a warning.
	PresenceWriteAttempts   = 3
	PresenceWriteRetryDelay = 2 * time.Second
)

// Config holds the process-level settings read from the environment.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	// TelegramToken enables the missed-call notifier when set.
	TelegramToken string
}

// Load reads the configuration from environment variables, falling back to
// development defaults.
func Load() *Config {
	return &Config{
		Addr:          getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:   getEnv("POSTGRES_DSN", "host=localhost user=user password=password dbname=talkiodb port=5432 sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		JWTSecret:     getEnv("JWT_SECRET", "dev-only-secret"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
